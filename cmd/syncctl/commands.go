package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/catalog-image-sync/internal/adapters/mcp"
	"github.com/kirillkom/catalog-image-sync/internal/bootstrap"
	"github.com/kirillkom/catalog-image-sync/internal/config"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/queue/nats"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/resilience"
)

func migrate(ctx context.Context, cfg config.Config) error {
	return bootstrap.Migrate(ctx, cfg)
}

func runLocal(ctx context.Context, cfg config.Config, logs io.Writer) (domain.RunResult, error) {
	cfg.NATSEnabled = false
	app, err := bootstrap.New(ctx, cfg, "syncctl", bootstrap.WithLogWriter(logs))
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	return app.Coordinator.Start(ctx, cliSource), nil
}

func triggerRemote(ctx context.Context, url, subject string, timeout time.Duration) (domain.RunResult, error) {
	noRetry := false
	client, err := nats.Connect(url, nats.Options{
		Name:                 "syncctl",
		RetryOnFailedConnect: &noRetry,
		ResilienceExecutor:   resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("connect nats: %w", err)
	}
	defer client.Close()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.RequestRun(reqCtx, subject, cliSource)
}

// serveMCP keeps stdout for the protocol; logs go to stderr.
func serveMCP(ctx context.Context, cfg config.Config, logs io.Writer) error {
	app, err := bootstrap.New(ctx, cfg, "mcp", bootstrap.WithLogWriter(logs))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	s := mcpadapter.NewServer(version, app.Coordinator, app.SettingsUC)
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}
