package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	pending   []Effect
	delivered []uuid.UUID
	failed    map[uuid.UUID]string
	terminal  map[uuid.UUID]bool
}

func newFakeRepo(effects ...Effect) *fakeRepo {
	return &fakeRepo{
		pending:  effects,
		failed:   map[uuid.UUID]string{},
		terminal: map[uuid.UUID]bool{},
	}
}

func (r *fakeRepo) ClaimPending(ctx context.Context, limit int) ([]Effect, error) {
	out := r.pending
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Attempts++
	}
	r.pending = r.pending[len(out):]
	return out, nil
}

func (r *fakeRepo) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	r.delivered = append(r.delivered, id)
	return nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, terminal bool) error {
	r.failed[id] = lastError
	r.terminal[id] = terminal
	return nil
}

type fakeNotifier struct {
	received []NotificationPayload
	err      error
}

func (n *fakeNotifier) Notify(ctx context.Context, p NotificationPayload) error {
	if n.err != nil {
		return n.err
	}
	n.received = append(n.received, p)
	return nil
}

type fakeAuditSink struct {
	received []AuditPayload
}

func (a *fakeAuditSink) Record(ctx context.Context, p AuditPayload) error {
	a.received = append(a.received, p)
	return nil
}

func TestDrainDeliversEffectsToSinks(t *testing.T) {
	userID := uuid.New()
	docID := uuid.New()
	notifEffect, err := NewNotificationEffect(NotificationPayload{
		UserID: userID, TypeCode: "DOC_ASSIGNED", Title: "Assigned", Message: "Review please", DocumentID: &docID,
	})
	require.NoError(t, err)
	auditEffect, err := NewAuditEffect(AuditPayload{
		ActorID: userID, ActionType: "SUBMIT", EntityType: "Document", EntityID: docID, Description: "Submitted",
	})
	require.NoError(t, err)

	repo := newFakeRepo(*notifEffect, *auditEffect)
	notifier := &fakeNotifier{}
	sink := &fakeAuditSink{}
	d := NewDispatcher(repo, notifier, sink, DispatcherConfig{}, zap.NewNop())

	require.NoError(t, d.DrainOnce(context.Background()))

	require.Len(t, notifier.received, 1)
	assert.Equal(t, "DOC_ASSIGNED", notifier.received[0].TypeCode)
	assert.Equal(t, userID, notifier.received[0].UserID)

	require.Len(t, sink.received, 1)
	assert.Equal(t, "SUBMIT", sink.received[0].ActionType)

	assert.Len(t, repo.delivered, 2)
	assert.Empty(t, repo.failed)
}

func TestDrainRecordsDeliveryFailure(t *testing.T) {
	effect, err := NewNotificationEffect(NotificationPayload{UserID: uuid.New(), TypeCode: "X", Title: "t", Message: "m"})
	require.NoError(t, err)

	repo := newFakeRepo(*effect)
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(repo, notifier, &fakeAuditSink{}, DispatcherConfig{MaxAttempts: 3}, zap.NewNop())

	require.NoError(t, d.DrainOnce(context.Background()))

	assert.Empty(t, repo.delivered)
	assert.Equal(t, "smtp down", repo.failed[effect.ID])
	assert.False(t, repo.terminal[effect.ID], "first failure should stay retryable")
}

func TestDrainParksEffectAfterMaxAttempts(t *testing.T) {
	effect, err := NewNotificationEffect(NotificationPayload{UserID: uuid.New(), TypeCode: "X", Title: "t", Message: "m"})
	require.NoError(t, err)
	effect.Attempts = 2 // claim bumps to 3

	repo := newFakeRepo(*effect)
	notifier := &fakeNotifier{err: errors.New("still down")}
	d := NewDispatcher(repo, notifier, &fakeAuditSink{}, DispatcherConfig{MaxAttempts: 3}, zap.NewNop())

	require.NoError(t, d.DrainOnce(context.Background()))
	assert.True(t, repo.terminal[effect.ID])
}

func TestDrainRejectsUnknownKind(t *testing.T) {
	effect := Effect{ID: uuid.New(), Kind: "MYSTERY", Payload: []byte("{}"), Status: StatusPending}

	repo := newFakeRepo(effect)
	d := NewDispatcher(repo, &fakeNotifier{}, &fakeAuditSink{}, DispatcherConfig{}, zap.NewNop())

	require.NoError(t, d.DrainOnce(context.Background()))
	assert.Contains(t, repo.failed[effect.ID], "unknown effect kind")
}
