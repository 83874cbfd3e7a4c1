package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/audit"
	"doc-collab/document-portal/document-portal-backend/internal/config"
	"doc-collab/document-portal/document-portal-backend/internal/notifications"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
	"doc-collab/document-portal/document-portal-backend/pkg/logger"
)

// Standalone effects dispatcher. Runs the same drain loop as the API process;
// deploy it separately when notification volume outgrows in-process delivery.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Logging.Environment)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// No hub here; notifications are stored and picked up over HTTP polling.
	notificationService := notifications.NewService(notifications.NewRepository(db), nil, log)
	auditService := audit.NewService(audit.NewRepository(db), log)

	dispatcher := outbox.NewDispatcher(outbox.NewRepository(db), notificationService, auditService, outbox.DispatcherConfig{
		Schedule:    cfg.Outbox.Schedule,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal("failed to start dispatcher", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	dispatcher.Stop()
}
