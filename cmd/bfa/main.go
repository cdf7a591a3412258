package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	chathandler "github.com/technicia/chat-bfa/internal/chat/handler"
	"github.com/technicia/chat-bfa/internal/chat/infra"
	"github.com/technicia/chat-bfa/internal/chat/service"
	"github.com/technicia/chat-bfa/internal/chat/store"
	"github.com/technicia/chat-bfa/internal/chat/watcher"
	"github.com/technicia/chat-bfa/internal/config"
	"github.com/technicia/chat-bfa/internal/handler"
	"github.com/technicia/chat-bfa/internal/infra/observability"
	"github.com/technicia/chat-bfa/internal/infra/resilience"
	"github.com/technicia/chat-bfa/internal/infra/session"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "technicia-chat-bfa")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_url", cfg.BackendURL),
		zap.String("backend_profile", cfg.BackendProfile),
		zap.Int("query_limit", cfg.QueryLimit),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.String("watch_dir", cfg.WatchDir),
	)

	profile, err := config.Profile(cfg.BackendProfile)
	if err != nil {
		logger.Fatal("invalid backend profile", zap.Error(err))
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "technicia-chat-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Backend client ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("technicia-backend", logger)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	backend := infra.NewBackendClient(httpClient, cfg.BackendURL, profile, cb, resilienceCfg)

	// --- Sessions ---
	sessions := store.NewRegistry(cfg.SessionTTL, func(id string) {
		metrics.SessionClosed()
		logger.Debug("session expired", zap.String("session_id", id))
	})
	defer sessions.Close()
	tokens := session.NewManager(cfg.SessionSecret, cfg.SessionTTL)

	// --- Services ---
	chatSvc := service.NewChatService(backend, sessions, cfg.QueryLimit, metrics, logger)

	// --- Router ---
	chatHandler := chathandler.NewChatHandler(chatSvc, tokens, logger)
	router := handler.NewRouter(chatHandler, backend, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// --- Drop folder ---
	if cfg.WatchDir != "" {
		if !profile.SupportsUpload() {
			logger.Warn("watch dir ignored: backend profile has no indexing endpoint",
				zap.String("backend_profile", profile.Name),
			)
		} else {
			w := watcher.New(chatSvc, logger)
			g.Go(func() error {
				return w.Run(ctx, cfg.WatchDir)
			})
		}
	}

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
