package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/taskgate/taskgate/internal/app"
	"github.com/taskgate/taskgate/internal/identity"
	"github.com/taskgate/taskgate/internal/observability"
	"github.com/taskgate/taskgate/internal/platform/db"
	"github.com/taskgate/taskgate/internal/platform/httpx"
	"github.com/taskgate/taskgate/internal/todos"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.TodoPGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := todos.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	service := todos.NewService(repo)
	handler := todos.NewHandler(logger, service)

	verifier := identity.NewClient(cfg.AuthServiceURL, cfg.VerifyTimeout)
	resolver := identity.NewResolver(verifier, cfg.GatewaySecret, logger)

	metrics := observability.NewMetrics("todod")

	r := chi.NewRouter()
	for _, mw := range app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: metrics}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := repo.Ping(req.Context()); err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "not_connected"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "connected"})
	})
	r.Handle("/metrics", metrics.Handler())

	handler.MountRoutes(r, resolver)

	server := &http.Server{
		Addr:         cfg.TodoAddr,
		Handler:      r,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting todo service", slog.String("addr", cfg.TodoAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
