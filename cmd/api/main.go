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
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if cfg.CronEnabled {
		if err := app.StartScheduler(ctx); err != nil {
			slog.Error("scheduler_start_failed", "error", err)
			os.Exit(1)
		}
	}

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     app.HTTPHandler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: event streams stay open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_error", "error", err)
	}
}
