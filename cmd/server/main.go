// Maria - Guided Onboarding Chat Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/marialabs/onboard/internal/api"
	"github.com/marialabs/onboard/internal/chat"
	"github.com/marialabs/onboard/internal/config"
	"github.com/marialabs/onboard/internal/mail"
	"github.com/marialabs/onboard/internal/middleware"
	"github.com/marialabs/onboard/internal/provision"
	"github.com/marialabs/onboard/internal/session"
	"github.com/marialabs/onboard/internal/store"
	"github.com/marialabs/onboard/internal/upload"
	"github.com/marialabs/onboard/internal/verification"
	"github.com/marialabs/onboard/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Clear sessions abandoned while the server was down.
	removed, err := repo.DeleteAbandonedSessions(context.Background(), cfg.SessionTTL)
	if err != nil {
		slog.Error("Failed to sweep abandoned sessions at startup", "error", err)
		os.Exit(1)
	}
	slog.Info("Startup session sweep complete", "removed", removed)

	// Initialize services.
	var mailer verification.Mailer
	if cfg.SMTP.Enabled() {
		mailer = mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		slog.Info("SMTP mailer configured", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	} else {
		mailer = mail.LogMailer{}
		slog.Info("SMTP not configured, verification codes will be logged")
	}

	sessions := session.NewService(repo, cfg.SessionTTL)
	verifier := verification.NewService(repo, mailer, verification.Config{
		CodeTTL:        cfg.CodeTTL,
		ResendCooldown: cfg.ResendCooldown,
		MaxAttempts:    cfg.MaxCodeAttempts,
		MaxResends:     cfg.MaxResends,
	})
	provisioner := provision.NewService(repo)
	manager := chat.NewManager(sessions, verifier, provisioner)

	uploads, err := upload.NewStore(upload.DefaultConfig(cfg.UploadDir))
	if err != nil {
		slog.Error("Failed to initialize upload store", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	conversationHandler := api.NewConversationHandler(manager, uploads)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := api.NewWebSocketHandler(manager, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.FrontendURL, cfg.IsDevelopment()))

	// Routes.
	healthHandler.RegisterRoutes(r)
	conversationHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/conversation", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: the conversation stream holds connections open, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start background workers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartSweeper(ctx, repo, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
