package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Notifier delivers a user notification outside the workflow transaction.
type Notifier interface {
	Notify(ctx context.Context, p NotificationPayload) error
}

// AuditSink records an audit entry outside the workflow transaction.
type AuditSink interface {
	Record(ctx context.Context, p AuditPayload) error
}

type DispatcherConfig struct {
	// Schedule is a cron spec with seconds field, e.g. "*/5 * * * * *".
	Schedule    string
	BatchSize   int
	MaxAttempts int
}

// Dispatcher drains the effects table on a schedule and routes each effect to
// its sink. A failed delivery stays pending until MaxAttempts is exhausted,
// then the effect is parked as failed.
type Dispatcher struct {
	repo     Repository
	notifier Notifier
	audit    AuditSink
	cfg      DispatcherConfig
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewDispatcher(repo Repository, notifier Notifier, audit AuditSink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/5 * * * * *"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{
		repo:     repo,
		notifier: notifier,
		audit:    audit,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.With(zap.String("component", "effects_dispatcher")),
	}
}

// Start schedules the drain loop. Errors only when the cron spec is invalid.
func (d *Dispatcher) Start(ctx context.Context) error {
	_, err := d.cron.AddFunc(d.cfg.Schedule, func() {
		if err := d.DrainOnce(ctx); err != nil {
			d.logger.Error("drain failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule dispatcher: %w", err)
	}
	d.cron.Start()
	d.logger.Info("dispatcher started", zap.String("schedule", d.cfg.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running drain to finish.
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
	d.logger.Info("dispatcher stopped")
}

// DrainOnce claims one batch of pending effects and delivers them.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	effects, err := d.repo.ClaimPending(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, effect := range effects {
		if err := d.deliver(ctx, effect); err != nil {
			// ClaimPending already counted this attempt.
			attempts := effect.Attempts
			terminal := attempts >= d.cfg.MaxAttempts
			d.logger.Warn("effect delivery failed",
				zap.String("effect_id", effect.ID.String()),
				zap.String("kind", string(effect.Kind)),
				zap.Int("attempts", attempts),
				zap.Bool("terminal", terminal),
				zap.Error(err))
			if markErr := d.repo.MarkFailed(ctx, effect.ID, attempts, err.Error(), terminal); markErr != nil {
				d.logger.Error("failed to record delivery failure", zap.Error(markErr))
			}
			continue
		}
		if err := d.repo.MarkDelivered(ctx, effect.ID); err != nil {
			// The effect will be redelivered next tick; both sinks tolerate
			// duplicates.
			d.logger.Error("failed to mark effect delivered", zap.Error(err))
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, effect Effect) error {
	switch effect.Kind {
	case KindNotification:
		var p NotificationPayload
		if err := json.Unmarshal(effect.Payload, &p); err != nil {
			return fmt.Errorf("decode notification payload: %w", err)
		}
		return d.notifier.Notify(ctx, p)
	case KindAudit:
		var p AuditPayload
		if err := json.Unmarshal(effect.Payload, &p); err != nil {
			return fmt.Errorf("decode audit payload: %w", err)
		}
		return d.audit.Record(ctx, p)
	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}
