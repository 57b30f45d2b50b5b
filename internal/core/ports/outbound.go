package ports

import (
	"context"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

// DirStateStore persists the last-seen modification marker per directory path.
type DirStateStore interface {
	RecordDirectoryStates(ctx context.Context, entries []domain.DirectoryEntry) (int, error)
	LoadDirectoryStates(ctx context.Context, prefix string) (map[string]int64, error)
}

// ImageStore writes one branch per call as a single bulk upsert.
type ImageStore interface {
	UpsertStandard(ctx context.Context, records []domain.CandidateRecord) (int, error)
	UpsertAmbience(ctx context.Context, records []domain.CandidateRecord) (int, error)
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	Load(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, settings domain.Settings) error
}

// TreeScanner walks one brand subtree of the external file collection.
// known maps directory paths to their last recorded modification marker.
type TreeScanner interface {
	Scan(ctx context.Context, brand string, known map[string]int64) (domain.ScanResult, error)
}

// EventPublisher broadcasts fire-and-forget events. Implementations must not block.
type EventPublisher interface {
	Publish(topic string, payload any)
}

// RunObserver receives run and reconciliation measurements.
type RunObserver interface {
	RunStarted(source string)
	RunFinished(source string, duration time.Duration, err error)
	BranchUpserted(branch domain.Branch, rows int)
	BranchFailed(branch domain.Branch)
	DirectoriesRecorded(count int)
}

// Scheduler re-arms the periodic trigger.
type Scheduler interface {
	Validate(expression string) error
	Reschedule(expression string) error
	Expression() string
}

// RunLock excludes reconciliation runs across processes sharing one store.
// release must be called exactly once after a successful acquire.
type RunLock interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}
