package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit record. The trail is append-only.
type Entry struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ActorID     uuid.UUID `json:"actor_id" db:"actor_id"`
	ActionType  string    `json:"action_type" db:"action_type"`
	EntityType  string    `json:"entity_type" db:"entity_type"`
	EntityID    uuid.UUID `json:"entity_id" db:"entity_id"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Filter struct {
	ActorID    *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Page       int
	PageSize   int
}

type PagedEntries struct {
	Items      []Entry `json:"items"`
	TotalItems int     `json:"total_items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}
