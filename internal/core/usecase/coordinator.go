package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

const runFlightKey = "sync-run"

// ErrRunLocked reports a run refused because another process is reconciling.
var ErrRunLocked = errors.New("sync already running in another process")

// SyncRunner executes the body of one run.
type SyncRunner interface {
	Run(ctx context.Context, progress ProgressFunc) (domain.RunStats, error)
}

// RunCoordinator serializes reconciliation runs and owns the run status.
// Concurrent Start calls while a run is in flight share that run's result.
type RunCoordinator struct {
	runner   SyncRunner
	events   ports.EventPublisher
	observer ports.RunObserver
	lock     ports.RunLock

	flight singleflight.Group

	mu     sync.RWMutex
	status domain.RunStatus

	now   func() time.Time
	newID func() string
}

func NewRunCoordinator(runner SyncRunner, events ports.EventPublisher, observer ports.RunObserver) *RunCoordinator {
	if events == nil {
		events = noopPublisher{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &RunCoordinator{
		runner:   runner,
		events:   events,
		observer: observer,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithRunLock makes every run hold lock, so runs started by other processes against the
// same store do not overlap with this one.
func (c *RunCoordinator) WithRunLock(lock ports.RunLock) *RunCoordinator {
	c.lock = lock
	return c
}

// Start runs a reconciliation or joins the one in progress. The run is detached from
// ctx cancellation: once started it proceeds to completion or failure.
func (c *RunCoordinator) Start(ctx context.Context, source string) domain.RunResult {
	runCtx := context.WithoutCancel(ctx)
	v, _, _ := c.flight.Do(runFlightKey, func() (any, error) {
		return c.executeLocked(runCtx, source), nil
	})
	return v.(domain.RunResult)
}

func (c *RunCoordinator) Status() domain.RunStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Clone()
}

// executeLocked refuses to run while another process holds the run lock. A refused run
// leaves the status untouched.
func (c *RunCoordinator) executeLocked(ctx context.Context, source string) domain.RunResult {
	if c.lock == nil {
		return c.execute(ctx, source)
	}
	release, acquired, err := c.lock.TryLock(ctx)
	if err != nil {
		slog.Error("sync_lock_failed", "source", source, "error", err)
		return domain.RunResult{OK: false, Error: fmt.Sprintf("acquire run lock: %v", err)}
	}
	if !acquired {
		slog.Warn("sync_skipped_locked", "source", source)
		return domain.RunResult{OK: false, Error: ErrRunLocked.Error()}
	}
	defer release()
	return c.execute(ctx, source)
}

func (c *RunCoordinator) execute(ctx context.Context, source string) (result domain.RunResult) {
	runID := c.newID()
	started := c.now()
	c.setRunning(runID, source, started)
	c.observer.RunStarted(source)
	c.events.Publish(domain.TopicSync, domain.SyncEvent{
		Type:   domain.EventSyncStart,
		TS:     started.UnixMilli(),
		RunID:  runID,
		Source: source,
	})
	slog.Info("sync_started", "run_id", runID, "source", source)

	var (
		stats domain.RunStats
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sync panicked: %v", r)
			}
		}()
		stats, err = c.runner.Run(ctx, func(evt domain.SyncEvent) {
			evt.RunID = runID
			if evt.Type == domain.EventBrandStart {
				c.setUnitProgress(evt.Brand, evt.Index, evt.Total)
			}
			c.events.Publish(domain.TopicSync, evt)
		})
	}()

	finished := c.now()
	c.observer.RunFinished(source, finished.Sub(started), err)
	ok := err == nil

	if err != nil {
		message := err.Error()
		slog.Error("sync_failed", "run_id", runID, "source", source, "error", message)
		c.setFinished(finished, nil, message)
		c.events.Publish(domain.TopicSync, domain.SyncEvent{
			Type:  domain.EventSyncEnd,
			TS:    finished.UnixMilli(),
			RunID: runID,
			OK:    &ok,
			Error: message,
		})
		return domain.RunResult{OK: false, Error: message}
	}

	slog.Info("sync_finished",
		"run_id", runID,
		"source", source,
		"duration_ms", finished.Sub(started).Milliseconds(),
		"updated_standard", stats.UpdatedStandard,
		"updated_ambience", stats.UpdatedAmbience,
		"branch_failures", stats.BranchFailures,
	)
	c.setFinished(finished, &stats, "")
	c.events.Publish(domain.TopicSync, domain.SyncEvent{
		Type:  domain.EventSyncEnd,
		TS:    finished.UnixMilli(),
		RunID: runID,
		OK:    &ok,
		Stats: stats,
	})
	return domain.RunResult{OK: true, Stats: &stats}
}

func (c *RunCoordinator) setRunning(runID, source string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := at.UnixMilli()
	c.status.Running = true
	c.status.RunID = runID
	c.status.Source = &source
	c.status.StartedAt = &ts
	c.status.FinishedAt = nil
	c.status.LastErrorMessage = nil
	c.status.CurrentUnit = nil
	c.status.UnitIndex = nil
	c.status.UnitTotal = nil
}

func (c *RunCoordinator) setUnitProgress(unit string, index, total *int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.CurrentUnit = &unit
	c.status.UnitIndex = index
	c.status.UnitTotal = total
}

func (c *RunCoordinator) setFinished(at time.Time, stats *domain.RunStats, errMessage string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := at.UnixMilli()
	c.status.Running = false
	c.status.FinishedAt = &ts
	c.status.LastStats = stats
	if errMessage == "" {
		c.status.LastSuccessAt = &ts
		return
	}
	c.status.LastErrorAt = &ts
	c.status.LastErrorMessage = &errMessage
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}
