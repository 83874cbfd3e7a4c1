package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EffectKind string

const (
	KindNotification EffectKind = "NOTIFICATION"
	KindAudit        EffectKind = "AUDIT"
)

type EffectStatus string

const (
	StatusPending   EffectStatus = "PENDING"
	StatusDelivered EffectStatus = "DELIVERED"
	StatusFailed    EffectStatus = "FAILED"
)

// Effect is a durable pending side effect written in the same transaction as
// the workflow mutation it belongs to. The dispatcher delivers it afterwards;
// delivery failure never rolls the workflow back.
type Effect struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Kind        EffectKind      `json:"kind" db:"kind"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Status      EffectStatus    `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	LastError   *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
}

// NotificationPayload asks the Notifier to deliver one user notification.
type NotificationPayload struct {
	UserID     uuid.UUID  `json:"user_id"`
	TypeCode   string     `json:"type_code"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
}

// AuditPayload asks the AuditSink to record one action.
type AuditPayload struct {
	ActorID     uuid.UUID `json:"actor_id"`
	ActionType  string    `json:"action_type"`
	EntityType  string    `json:"entity_type"`
	EntityID    uuid.UUID `json:"entity_id"`
	Description string    `json:"description"`
}

// NewNotificationEffect marshals a notification payload into a pending effect.
func NewNotificationEffect(p NotificationPayload) (*Effect, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &Effect{
		ID:        uuid.New(),
		Kind:      KindNotification,
		Payload:   data,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewAuditEffect marshals an audit payload into a pending effect.
func NewAuditEffect(p AuditPayload) (*Effect, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &Effect{
		ID:        uuid.New(),
		Kind:      KindAudit,
		Payload:   data,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}
