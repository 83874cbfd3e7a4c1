package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/audit"
	"doc-collab/document-portal/document-portal-backend/internal/config"
	"doc-collab/document-portal/document-portal-backend/internal/documents"
	"doc-collab/document-portal/document-portal-backend/internal/identity"
	"doc-collab/document-portal/document-portal-backend/internal/notifications"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
	"doc-collab/document-portal/document-portal-backend/pkg/logger"
	"doc-collab/document-portal/document-portal-backend/pkg/storage"
)

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
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	fileStore, err := storage.NewLocalStore(storage.LocalStoreConfig{
		BasePath:          cfg.FileStorage.BasePath,
		Subfolder:         cfg.FileStorage.Subfolder,
		MaxFileSizeMB:     cfg.FileStorage.MaxFileSizeMB,
		AllowedExtensions: cfg.FileStorage.AllowedExtensions,
	})
	if err != nil {
		log.Fatal("failed to initialize file storage", zap.Error(err))
	}

	// Identity
	identityRepo := identity.NewRepository(db)
	identityService := identity.NewService(identityRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry(), log)
	identityHandler := identity.NewHandler(identityService)

	// Documents
	docStore := documents.NewStore(db)
	perms := documents.NewPermissionEvaluator()
	assignments := documents.NewAssignmentTracker()
	versions := documents.NewVersionManager()
	numbers := documents.NewNumberGenerator("DOC")
	workflow := documents.NewWorkflowEngine(docStore, perms, assignments, log)
	docService := documents.NewService(docStore, fileStore, versions, numbers, perms, identityRepo, log)
	docHandler := documents.NewHandler(docService, workflow)

	// Notifications and audit, fed by the outbox dispatcher
	hub := notifications.NewHub(log)
	notificationService := notifications.NewService(notifications.NewRepository(db), hub, log)
	notificationHandler := notifications.NewHandler(notificationService, hub)
	auditService := audit.NewService(audit.NewRepository(db), log)
	auditHandler := audit.NewHandler(auditService)

	dispatcher := outbox.NewDispatcher(outbox.NewRepository(db), notificationService, auditService, outbox.DispatcherConfig{
		Schedule:    cfg.Outbox.Schedule,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal("failed to start effects dispatcher", zap.Error(err))
	}

	if cfg.Logging.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	api := router.Group("/api/v1")
	identityHandler.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(identity.AuthMiddleware(identityService))
	{
		identityHandler.RegisterRoutes(protected)
		docHandler.RegisterRoutes(protected)
		notificationHandler.RegisterRoutes(protected)
		auditHandler.RegisterRoutes(protected)
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	dispatcher.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
