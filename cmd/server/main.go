// Miktsoan core server: session lifecycle, real-time chat relay, and the AI
// assistant gateway.
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
	"github.com/miktsoan/core/internal/api"
	"github.com/miktsoan/core/internal/assistant"
	"github.com/miktsoan/core/internal/auth"
	"github.com/miktsoan/core/internal/chat"
	"github.com/miktsoan/core/internal/config"
	"github.com/miktsoan/core/internal/middleware"
	"github.com/miktsoan/core/internal/relay"
	"github.com/miktsoan/core/internal/state"
	"github.com/miktsoan/core/internal/store"
)

// snapshotStore adapts the repository's named-blob API to the state
// container's narrow snapshot interface.
type snapshotStore struct {
	repo store.Repository
	name string
}

func (s snapshotStore) Save(ctx context.Context, blob []byte) error {
	return s.repo.SaveSnapshot(ctx, s.name, blob)
}

func (s snapshotStore) Load(ctx context.Context) ([]byte, error) {
	return s.repo.LoadSnapshot(ctx, s.name)
}

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

	// Application state: subscribers first, then rehydrate so the language
	// side effect fires exactly once on startup.
	appState := state.New(snapshotStore{repo: repo, name: cfg.SnapshotName})
	appState.Subscribe(func(ev state.Event) {
		if ev.Region == state.RegionLanguage {
			slog.Info("Language applied", "language", ev.Language, "direction", ev.Language.Direction())
		}
	})
	appState.Rehydrate(context.Background())
	slog.Info("Application state rehydrated", "language", appState.Language(), "history_len", len(appState.History()))

	// AI assistant gateway. An empty API key selects fallback mode.
	gateway, err := assistant.New(context.Background(), cfg.Assistant)
	if err != nil {
		slog.Error("Failed to initialize assistant gateway", "error", err)
		os.Exit(1)
	}

	// Real-time relay and the conversation orchestrator.
	hub := relay.NewHub()
	wsHandler := relay.NewWebSocketHandler(hub, appState, cfg.FrontendURL, cfg.IsDevelopment())
	conv := chat.NewConversation(gateway, hub, appState)

	// Credential challenge flow.
	var issuer auth.CodeIssuer
	if cfg.Challenge.StaticCode != "" {
		slog.Warn("Using static demo OTP code; do not deploy this configuration")
		issuer = &auth.StaticIssuer{Code: cfg.Challenge.StaticCode}
	} else {
		issuer = auth.NewTimeboxedIssuer(cfg.Challenge.CodeTTL, cfg.Challenge.MaxAttempts)
	}
	limiter := auth.NewWindowLimiter(cfg.Challenge.RateWindow, cfg.Challenge.RateBurst)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.Challenge.TokenLifetime)
	authSvc := auth.NewService(issuer, auth.LogSender{}, limiter, repo, appState, tokens)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{cfg.FrontendURL}))

	api.NewAuthHandler(authSvc, appState).RegisterRoutes(r)
	api.NewAssistantHandler(conv).RegisterRoutes(r)

	// Token-protected routes: the signed session credential is trusted here
	// without re-verifying the challenge.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(tokens))
		api.NewRequestsHandler(repo, appState).RegisterRoutes(pr)
	})

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // long-lived WebSocket connections
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
