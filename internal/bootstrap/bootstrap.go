package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/kirillkom/catalog-image-sync/internal/adapters/http"
	"github.com/kirillkom/catalog-image-sync/internal/config"
	"github.com/kirillkom/catalog-image-sync/internal/core/usecase"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/events"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/queue/nats"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/resilience"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/scanner/localfs"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/scheduler"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/settings/yamlfile"
	"github.com/kirillkom/catalog-image-sync/internal/observability/logging"
	"github.com/kirillkom/catalog-image-sync/internal/observability/metrics"
)

const cronSource = "cron"

type App struct {
	Config  config.Config
	Service string

	Registry    *prometheus.Registry
	SyncMetrics *metrics.SyncMetrics
	Hub         *events.Hub
	NATS        *nats.Client

	Coordinator *usecase.RunCoordinator
	ImagesUC    *usecase.ImageBatchUseCase
	DirStates   *postgres.DirStateRepository
	SettingsUC  *usecase.SettingsUseCase
	Scheduler   *scheduler.Cron

	closeFn func()
}

type Option func(*options)

type options struct {
	logWriter io.Writer
}

// WithLogWriter sends JSON logs somewhere other than stdout.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// New wires the whole sync stack. service labels logs and metrics ("api", "worker", ...).
func New(ctx context.Context, cfg config.Config, service string, opts ...Option) (*App, error) {
	o := options{logWriter: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	registry := metrics.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry, service)

	hub := events.NewHub()
	hub.OnDrop(syncMetrics.EventDropped)

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	var natsClient *nats.Client
	publisher := events.Multi{hub}
	if cfg.NATSEnabled {
		client, err := nats.Connect(cfg.NATSURL, nats.Options{
			Name:               "catalog-image-sync-" + service,
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init nats: %w", err)
		}
		natsClient = client
		publisher = append(publisher, client.EventMirror(cfg.NATSEventsPrefix))
	}

	logger := logging.New(o.logWriter, service, cfg.LogLevel, publisher)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		closeNATS(natsClient)
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	tables := tablesFromConfig(cfg)
	if err := tables.Validate(); err != nil {
		closeAll(natsClient, db)
		return nil, fmt.Errorf("validate tables: %w", err)
	}
	if cfg.MigrateOnStartup {
		if err := postgres.EnsureSchema(ctx, db, tables); err != nil {
			closeAll(natsClient, db)
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.ScanRoot, 0o755); err != nil {
		closeAll(natsClient, db)
		return nil, fmt.Errorf("create scan root: %w", err)
	}
	scanner, err := localfs.New(cfg.ScanRoot, cfg.ExcludedFolders)
	if err != nil {
		closeAll(natsClient, db)
		return nil, fmt.Errorf("init scanner: %w", err)
	}

	imageRepo := postgres.NewImageRepository(db, tables, executor)
	dirStateRepo := postgres.NewDirStateRepository(db, tables, executor)
	settingsStore := yamlfile.New(cfg.SettingsPath)

	reconciler := usecase.NewBatchReconciler(imageRepo, syncMetrics)
	imagesUC := usecase.NewImageBatchUseCase(reconciler)
	pipeline := usecase.NewSyncPipeline(settingsStore, scanner, dirStateRepo, reconciler, syncMetrics, cfg.UpsertBatchSize)
	coordinator := usecase.NewRunCoordinator(pipeline, publisher, syncMetrics).
		WithRunLock(postgres.NewRunLock(db))

	cron := scheduler.New(func() {
		coordinator.Start(context.Background(), cronSource)
	})
	settingsUC := usecase.NewSettingsUseCase(settingsStore, cron)

	return &App{
		Config:  cfg,
		Service: service,

		Registry:    registry,
		SyncMetrics: syncMetrics,
		Hub:         hub,
		NATS:        natsClient,

		Coordinator: coordinator,
		ImagesUC:    imagesUC,
		DirStates:   dirStateRepo,
		SettingsUC:  settingsUC,
		Scheduler:   cron,

		closeFn: func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			cron.Stop(stopCtx)
			closeAll(natsClient, db)
		},
	}, nil
}

// StartScheduler arms the periodic run with the persisted cron expression.
func (a *App) StartScheduler(ctx context.Context) error {
	settings, err := a.SettingsUC.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := a.Scheduler.Start(settings.CronExpression); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	slog.Info("scheduler_started", "cron", settings.CronExpression)
	return nil
}

// HTTPHandler builds the API router with request metrics registered on the app registry.
func (a *App) HTTPHandler() http.Handler {
	return httpadapter.NewRouter(a.Config, httpadapter.Dependencies{
		Sync:      a.Coordinator,
		Images:    a.ImagesUC,
		DirStates: a.DirStates,
		Settings:  a.SettingsUC,
		Events:    a.Hub,
		Cron:      a.SettingsUC,

		Metrics:        metrics.NewHTTPServerMetrics(a.Registry, a.Service),
		MetricsHandler: metrics.Handler(a.Registry),
	}).Handler()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Migrate creates the sync tables without wiring the rest of the stack.
func Migrate(ctx context.Context, cfg config.Config) error {
	tables := tablesFromConfig(cfg)
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate tables: %w", err)
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db, tables); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.ResilienceRetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	}
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerOpenTimeout > 0 {
		rc.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenTimeout) * time.Second
	}
	return rc
}

func tablesFromConfig(cfg config.Config) postgres.Tables {
	return postgres.Tables{
		Standard: cfg.TableStandard,
		Ambience: cfg.TableAmbience,
		DirState: cfg.TableDirState,
	}
}

func closeNATS(client *nats.Client) {
	if client != nil {
		client.Close()
	}
}

func closeAll(client *nats.Client, db *sql.DB) {
	closeNATS(client)
	if db != nil {
		_ = db.Close()
	}
}
