package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"broadcast-player/internal/analytics"
	"broadcast-player/internal/boxcast"
	"broadcast-player/internal/platform/config"
	"broadcast-player/internal/platform/logger"
	"broadcast-player/internal/platform/metrics"
	"broadcast-player/internal/player"
	"broadcast-player/internal/viewer"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	api := boxcast.New(cfg.APIURL, boxcast.WithRateLimit(cfg.APIRatePerSec, cfg.APIBurst))

	var binder player.Binder
	if cfg.AnalyticsEnabled {
		binder = analytics.NewBinder(analytics.DefaultConfig(cfg.AnalyticsEndpoint), nil, log)
	}

	repo := viewer.NewInMemoryRepository()
	svc := viewer.NewService(repo, api, api, binder, viewer.Settings{
		Profile: player.Profile{
			AutoFullscreenOnUpdate: cfg.AutoFullscreenOnUpdate,
			AnalyticsEnabled:       cfg.AnalyticsEnabled,
		},
		AttachPolicy:  player.ParseAttachFailurePolicy(cfg.AttachFailurePolicy),
		AttachTimeout: cfg.AttachTimeout,
		ResizeMode:    cfg.ResizeMode,
	}, log, met)
	h := viewer.NewHandler(svc, log).LimitOpens(cfg.OpenSessionsPerMinute, time.Minute)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met, "/metrics"))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveSessionCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"api_url", cfg.APIURL,
		"analytics_enabled", cfg.AnalyticsEnabled,
		"auto_fullscreen_on_update", cfg.AutoFullscreenOnUpdate,
		"attach_failure_policy", cfg.AttachFailurePolicy,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := svc.Shutdown(ctx); err != nil {
		log.Error("session shutdown error", "error", err)
	}

	log.Info("server stopped")
}
