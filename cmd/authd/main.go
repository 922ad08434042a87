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
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/taskgate/taskgate/internal/app"
	"github.com/taskgate/taskgate/internal/identity"
	"github.com/taskgate/taskgate/internal/observability"
	"github.com/taskgate/taskgate/internal/platform/db"
	"github.com/taskgate/taskgate/internal/platform/httpx"
	"github.com/taskgate/taskgate/jobs"
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

	pool, err := db.New(ctx, cfg.AuthPGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := identity.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	issuer := identity.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	service := identity.NewService(repo, issuer, cfg.RefreshTokenTTL)
	handler := identity.NewHandler(logger, service)

	metrics := observability.NewMetrics("authd")

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

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

	r.Route("/api/auth", handler.MountRoutes)

	r.Route("/api/jobs", func(r chi.Router) {
		jobHandler.MountRoutes(r)
		r.Post("/token-sweep", func(w http.ResponseWriter, req *http.Request) {
			if _, err := verifyBearer(req, service); err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			info, err := jobClient.EnqueueTokenSweep(req.Context(), false)
			if err != nil {
				logger.Error("enqueue token sweep", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Upstream Unavailable", "queue unavailable")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]string{"task_id": info.ID, "queue": info.Queue})
		})
	})

	server := &http.Server{
		Addr:         cfg.AuthAddr,
		Handler:      r,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting auth service", slog.String("addr", cfg.AuthAddr))
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

func verifyBearer(r *http.Request, service *identity.Service) (*identity.User, error) {
	token, err := identity.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return service.Verify(r.Context(), token)
}
