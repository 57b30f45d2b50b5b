package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/bootstrap"
	"github.com/kirillkom/catalog-image-sync/internal/config"
	"github.com/kirillkom/catalog-image-sync/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.NATSEnabled {
		log.Fatalf("worker requires NATS_ENABLED=true")
	}

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()

	slog.Info("worker_started", "subject", cfg.NATSTriggerSubject)
	if err := app.NATS.ServeTrigger(ctx, cfg.NATSTriggerSubject, app.Coordinator); err != nil {
		slog.Error("worker_trigger_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker_metrics_shutdown_error", "error", err)
	}
}
