package notifications

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	TypeCode   string     `json:"type_code" db:"type_code"`
	Title      string     `json:"title" db:"title"`
	Message    string     `json:"message" db:"message"`
	DocumentID *uuid.UUID `json:"document_id,omitempty" db:"document_id"`
	IsRead     bool       `json:"is_read" db:"is_read"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

type PagedNotifications struct {
	Items      []Notification `json:"items"`
	TotalItems int            `json:"total_items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
