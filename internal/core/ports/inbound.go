package ports

import (
	"context"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

// RunStarter is the inbound contract for triggering reconciliation runs.
type RunStarter interface {
	Start(ctx context.Context, source string) domain.RunResult
}

// RunStatusReader exposes the current run state.
type RunStatusReader interface {
	Status() domain.RunStatus
}

// SyncController combines run triggering and status reads.
type SyncController interface {
	RunStarter
	RunStatusReader
}

// ImageBatchIngestor upserts externally built image rows.
type ImageBatchIngestor interface {
	UpsertBatch(ctx context.Context, rows []domain.RawRow) (domain.ReconcileResult, error)
}

// DirStateIngestor persists directory modification markers.
type DirStateIngestor interface {
	RecordDirectoryStates(ctx context.Context, entries []domain.DirectoryEntry) (int, error)
}

// SettingsService reads and patches runtime settings.
type SettingsService interface {
	Load(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)
}

// EventSubscriber attaches a listener to the broadcast channel.
type EventSubscriber interface {
	Subscribe(buffer int) (<-chan domain.Event, func())
}
