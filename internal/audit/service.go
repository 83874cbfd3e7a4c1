package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/outbox"
)

// Service writes and reads the audit trail. It is the outbox.AuditSink the
// dispatcher delivers to.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With(zap.String("component", "audit_service")),
	}
}

func (s *Service) Record(ctx context.Context, p outbox.AuditPayload) error {
	return s.repo.Create(ctx, &Entry{
		ID:          uuid.New(),
		ActorID:     p.ActorID,
		ActionType:  p.ActionType,
		EntityType:  p.EntityType,
		EntityID:    p.EntityID,
		Description: p.Description,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) List(ctx context.Context, filter Filter) (*PagedEntries, error) {
	return s.repo.List(ctx, filter)
}
