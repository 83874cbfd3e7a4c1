package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/outbox"
)

// Service persists notifications and pushes them to connected clients. It is
// the outbox.Notifier: the dispatcher hands it decoded payloads after the
// owning workflow transaction committed.
type Service struct {
	repo   Repository
	hub    *Hub
	logger *zap.Logger
}

func NewService(repo Repository, hub *Hub, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		hub:    hub,
		logger: logger.With(zap.String("component", "notification_service")),
	}
}

// Notify stores the notification and attempts a live push. The push is best
// effort; a user without an open socket reads it from the list later.
func (s *Service) Notify(ctx context.Context, p outbox.NotificationPayload) error {
	n := &Notification{
		ID:         uuid.New(),
		UserID:     p.UserID,
		TypeCode:   p.TypeCode,
		Title:      p.Title,
		Message:    p.Message,
		DocumentID: p.DocumentID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	if s.hub != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			s.hub.Push(p.UserID, payload)
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) (*PagedNotifications, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, page, pageSize)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
