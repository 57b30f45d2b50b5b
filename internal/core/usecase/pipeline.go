package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/catalog"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

const DefaultUpsertBatchSize = 500

// ProgressFunc receives brand-level progress events during a run.
type ProgressFunc func(domain.SyncEvent)

// SyncPipeline is the body of one reconciliation run over every configured brand.
type SyncPipeline struct {
	settings   ports.SettingsStore
	scanner    ports.TreeScanner
	dirStates  ports.DirStateStore
	reconciler *BatchReconciler
	observer   ports.RunObserver
	batchSize  int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewSyncPipeline(
	settings ports.SettingsStore,
	scanner ports.TreeScanner,
	dirStates ports.DirStateStore,
	reconciler *BatchReconciler,
	observer ports.RunObserver,
	batchSize int,
) *SyncPipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	if batchSize <= 0 {
		batchSize = DefaultUpsertBatchSize
	}
	return &SyncPipeline{
		settings:   settings,
		scanner:    scanner,
		dirStates:  dirStates,
		reconciler: reconciler,
		observer:   observer,
		batchSize:  batchSize,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func (p *SyncPipeline) Run(ctx context.Context, progress ProgressFunc) (domain.RunStats, error) {
	if progress == nil {
		progress = func(domain.SyncEvent) {}
	}

	settings, err := p.settings.Load(ctx)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("load settings: %w", err)
	}
	settings = settings.Normalize()
	brands := settings.BrandNames()
	total := len(brands)

	var stats domain.RunStats
	stats.Brands = make([]domain.BrandStats, 0, total)
	for i, brand := range brands {
		index, count := i+1, total
		progress(domain.SyncEvent{
			Type:  domain.EventBrandStart,
			TS:    p.now().UnixMilli(),
			Brand: brand,
			Index: &index,
			Total: &count,
		})

		brandStats, err := p.syncBrand(ctx, brand)
		if err != nil {
			return stats, fmt.Errorf("sync brand %s: %w", brand, err)
		}
		stats.Add(brandStats)

		progress(domain.SyncEvent{
			Type:  domain.EventBrandEnd,
			TS:    p.now().UnixMilli(),
			Brand: brand,
			Index: &index,
			Total: &count,
			Stats: brandStats,
		})

		if settings.BrandDelayMs > 0 && i < total-1 {
			if err := p.sleep(ctx, time.Duration(settings.BrandDelayMs)*time.Millisecond); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

func (p *SyncPipeline) syncBrand(ctx context.Context, brand string) (domain.BrandStats, error) {
	stats := domain.BrandStats{Brand: brand}

	known, err := p.dirStates.LoadDirectoryStates(ctx, "/"+strings.Trim(brand, "/"))
	if err != nil {
		return stats, fmt.Errorf("load directory states: %w", err)
	}

	scan, err := p.scanner.Scan(ctx, brand, known)
	if err != nil {
		return stats, fmt.Errorf("scan tree: %w", err)
	}
	stats.FilesSeen = len(scan.Files)
	stats.FilesSkipped = scan.FilesSkipped

	now := p.now()
	records := make([]domain.CandidateRecord, 0, len(scan.Files))
	for _, file := range scan.Files {
		rec, ok := catalog.Build(rawRowFromFile(file), catalog.ContextForFolders(file.Folders), now)
		if !ok {
			stats.FilesSkipped++
			continue
		}
		records = append(records, rec)
	}

	standard, ambience := catalog.SplitByBranch(records)
	standard = catalog.DedupeLatest(standard)
	ambience = catalog.DedupeLatest(ambience)

	for _, part := range chunk(standard, p.batchSize) {
		result := p.reconciler.Reconcile(ctx, part, nil)
		stats.UpdatedStandard += result.UpdatedStandard
		stats.BranchFailures += len(result.Failures)
	}
	for _, part := range chunk(ambience, p.batchSize) {
		result := p.reconciler.Reconcile(ctx, nil, part)
		stats.UpdatedAmbience += result.UpdatedAmbience
		stats.BranchFailures += len(result.Failures)
	}

	// Directory markers advance only after every branch of the brand is stored.
	if stats.BranchFailures > 0 {
		slog.Warn("directory_states_not_recorded",
			"brand", brand,
			"branch_failures", stats.BranchFailures,
		)
		return stats, nil
	}
	for _, part := range chunk(scan.Directories, p.batchSize) {
		n, err := p.dirStates.RecordDirectoryStates(ctx, part)
		if err != nil {
			return stats, fmt.Errorf("record directory states: %w", err)
		}
		stats.DirsRecorded += n
		p.observer.DirectoriesRecorded(n)
	}
	return stats, nil
}

func rawRowFromFile(file domain.FileObservation) domain.RawRow {
	raw := domain.RawRow{
		ProductCode:   domain.StringValue(catalog.ProductCodeFromFileName(file.Name)),
		AttachmentRef: domain.StringValue(file.Path),
		ImageName:     domain.StringValue(strings.TrimSuffix(file.Name, fileExt(file.Name))),
	}
	if !file.ModifiedAt.IsZero() {
		raw.SourceModifiedAt = domain.TimeValue(file.ModifiedAt.UTC())
	}
	return raw
}

func fileExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[idx:]
	}
	return ""
}

func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
