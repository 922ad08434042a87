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
	"github.com/taskgate/taskgate/internal/gateway"
	"github.com/taskgate/taskgate/internal/identity"
	"github.com/taskgate/taskgate/internal/observability"
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

	verifier := identity.NewClient(cfg.AuthServiceURL, cfg.VerifyTimeout)
	forwarder := gateway.NewForwarder(cfg.ForwardTimeout, logger)
	router := gateway.NewRouter(gateway.Config{
		Logger:        logger,
		Verifier:      verifier,
		Forwarder:     forwarder,
		AuthURL:       cfg.AuthServiceURL,
		TodoURL:       cfg.TodoServiceURL,
		GatewaySecret: cfg.GatewaySecret,
	})

	metrics := observability.NewMetrics("gateway")

	r := chi.NewRouter()
	for _, mw := range app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: metrics}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Handle("/metrics", metrics.Handler())
	router.MountRoutes(r)

	// The write timeout must outlast the upstream forward timeout or slow
	// upstream responses get truncated mid-copy.
	server := &http.Server{
		Addr:         cfg.GatewayAddr,
		Handler:      r,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.ForwardTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("starting gateway", slog.String("addr", cfg.GatewayAddr))
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
