package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository claims and settles pending effects. The claim subquery uses
// FOR UPDATE SKIP LOCKED so dispatchers racing on the same batch pick
// disjoint rows; sinks still tolerate the rare redelivery.
type Repository interface {
	ClaimPending(ctx context.Context, limit int) ([]Effect, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, terminal bool) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ClaimPending(ctx context.Context, limit int) ([]Effect, error) {
	effects := []Effect{}
	err := r.db.SelectContext(ctx, &effects, `
		UPDATE workflow_effects
		SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM workflow_effects
			WHERE status = $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, status, attempts, last_error, created_at, delivered_at`,
		StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending effects: %w", err)
	}
	return effects, nil
}

func (r *postgresRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflow_effects
		SET status = $1, delivered_at = $2
		WHERE id = $3`, StatusDelivered, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark effect delivered: %w", err)
	}
	return nil
}

func (r *postgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, terminal bool) error {
	status := StatusPending
	if terminal {
		status = StatusFailed
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflow_effects
		SET status = $1, attempts = $2, last_error = $3
		WHERE id = $4`, status, attempts, lastError, id)
	if err != nil {
		return fmt.Errorf("mark effect failed: %w", err)
	}
	return nil
}
