package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

type syncRunnerFake struct {
	calls   atomic.Int32
	release chan struct{}
	entered chan struct{}
	once    sync.Once
	stats   domain.RunStats
	err     error
	panics  bool
}

func (f *syncRunnerFake) Run(_ context.Context, progress ProgressFunc) (domain.RunStats, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("boom")
	}
	index, total := 1, 1
	progress(domain.SyncEvent{Type: domain.EventBrandStart, Brand: "ARENA", Index: &index, Total: &total})
	progress(domain.SyncEvent{Type: domain.EventBrandEnd, Brand: "ARENA", Index: &index, Total: &total})
	return f.stats, f.err
}

func newTestCoordinator(runner SyncRunner, events *publisherFake, observer *observerFake) *RunCoordinator {
	c := NewRunCoordinator(runner, events, observer)
	tick := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	c.newID = func() string { return "run-1" }
	return c
}

func TestRunCoordinatorSuccess(t *testing.T) {
	runner := &syncRunnerFake{stats: domain.RunStats{UpdatedStandard: 4}}
	events := &publisherFake{}
	observer := &observerFake{}
	c := newTestCoordinator(runner, events, observer)

	result := c.Start(context.Background(), "manual")
	if !result.OK || result.Stats == nil || result.Stats.UpdatedStandard != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}

	status := c.Status()
	if status.Running {
		t.Fatalf("expected run to be finished")
	}
	if status.LastSuccessAt == nil || status.FinishedAt == nil || *status.LastSuccessAt != *status.FinishedAt {
		t.Fatalf("expected lastSuccessAt == finishedAt, got %+v", status)
	}
	if status.LastErrorMessage != nil {
		t.Fatalf("expected no error message, got %s", *status.LastErrorMessage)
	}
	if status.LastStats == nil || status.LastStats.UpdatedStandard != 4 {
		t.Fatalf("expected last stats stored, got %+v", status.LastStats)
	}
	if status.Source == nil || *status.Source != "manual" {
		t.Fatalf("expected source manual, got %v", status.Source)
	}
	if status.CurrentUnit == nil || *status.CurrentUnit != "ARENA" {
		t.Fatalf("expected current brand ARENA, got %v", status.CurrentUnit)
	}

	want := []string{domain.EventSyncStart, domain.EventBrandStart, domain.EventBrandEnd, domain.EventSyncEnd}
	got := events.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
	for _, evt := range events.events {
		if evt.RunID != "run-1" {
			t.Fatalf("expected every event stamped with run id, got %+v", evt)
		}
	}
	last := events.events[len(events.events)-1]
	if last.OK == nil || !*last.OK {
		t.Fatalf("expected ok syncEnd, got %+v", last)
	}
	if len(observer.started) != 1 || len(observer.finished) != 1 || observer.finished[0] != nil {
		t.Fatalf("unexpected observer calls: started=%v finished=%v", observer.started, observer.finished)
	}
}

func TestRunCoordinatorFailureClearsStats(t *testing.T) {
	runner := &syncRunnerFake{stats: domain.RunStats{UpdatedStandard: 2}}
	events := &publisherFake{}
	c := newTestCoordinator(runner, events, &observerFake{})

	if result := c.Start(context.Background(), "cron"); !result.OK {
		t.Fatalf("expected first run ok, got %+v", result)
	}
	firstSuccess := *c.Status().LastSuccessAt

	runner.err = errors.New("scan tree: permission denied")
	result := c.Start(context.Background(), "cron")
	if result.OK || result.Error != "scan tree: permission denied" {
		t.Fatalf("unexpected result: %+v", result)
	}

	status := c.Status()
	if status.LastStats != nil {
		t.Fatalf("expected last stats cleared after failure, got %+v", status.LastStats)
	}
	if status.LastErrorAt == nil || *status.LastErrorAt != *status.FinishedAt {
		t.Fatalf("expected lastErrorAt == finishedAt, got %+v", status)
	}
	if status.LastErrorMessage == nil || *status.LastErrorMessage != "scan tree: permission denied" {
		t.Fatalf("unexpected error message: %v", status.LastErrorMessage)
	}
	if *status.LastSuccessAt != firstSuccess {
		t.Fatalf("lastSuccessAt must survive a failed run")
	}

	last := events.events[len(events.events)-1]
	if last.Type != domain.EventSyncEnd || last.OK == nil || *last.OK || last.Error == "" {
		t.Fatalf("expected failed syncEnd, got %+v", last)
	}
}

func TestRunCoordinatorRecoversPanic(t *testing.T) {
	c := newTestCoordinator(&syncRunnerFake{panics: true}, &publisherFake{}, &observerFake{})

	result := c.Start(context.Background(), "manual")
	if result.OK {
		t.Fatalf("expected failed result after panic")
	}
	if c.Status().Running {
		t.Fatalf("expected running=false after panic")
	}
}

func TestRunCoordinatorConcurrentStartsShareRun(t *testing.T) {
	runner := &syncRunnerFake{
		release: make(chan struct{}),
		entered: make(chan struct{}),
		stats:   domain.RunStats{UpdatedAmbience: 7},
	}
	c := newTestCoordinator(runner, &publisherFake{}, &observerFake{})

	first := make(chan domain.RunResult, 1)
	go func() { first <- c.Start(context.Background(), "manual") }()
	<-runner.entered

	if !c.Status().Running {
		t.Fatalf("expected running=true while in flight")
	}

	second := make(chan domain.RunResult, 1)
	go func() { second <- c.Start(context.Background(), "cron") }()

	// Give the second caller time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)
	close(runner.release)

	r1, r2 := <-first, <-second
	if r1.Stats == nil || r2.Stats == nil || r1.Stats.UpdatedAmbience != 7 || r2.Stats.UpdatedAmbience != 7 {
		t.Fatalf("expected both callers to get the same result, got %+v and %+v", r1, r2)
	}
	if calls := runner.calls.Load(); calls != 1 {
		t.Fatalf("expected a single run, got %d", calls)
	}
}

func TestRunCoordinatorIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen error
	runner := runnerFunc(func(ctx context.Context, _ ProgressFunc) (domain.RunStats, error) {
		seen = ctx.Err()
		return domain.RunStats{}, nil
	})
	c := newTestCoordinator(runner, &publisherFake{}, &observerFake{})

	if result := c.Start(ctx, "manual"); !result.OK {
		t.Fatalf("unexpected result: %+v", result)
	}
	if seen != nil {
		t.Fatalf("expected run context detached from caller, got %v", seen)
	}
}

type runnerFunc func(context.Context, ProgressFunc) (domain.RunStats, error)

func (f runnerFunc) Run(ctx context.Context, progress ProgressFunc) (domain.RunStats, error) {
	return f(ctx, progress)
}

type runLockFake struct {
	acquired bool
	err      error
	tries    int
	releases int
}

func (f *runLockFake) TryLock(context.Context) (func(), bool, error) {
	f.tries++
	if f.err != nil || !f.acquired {
		return nil, false, f.err
	}
	return func() { f.releases++ }, true, nil
}

func TestRunCoordinatorHoldsRunLock(t *testing.T) {
	runner := &syncRunnerFake{}
	lock := &runLockFake{acquired: true}
	c := newTestCoordinator(runner, &publisherFake{}, &observerFake{}).WithRunLock(lock)

	if result := c.Start(context.Background(), "cron"); !result.OK {
		t.Fatalf("expected successful run, got %+v", result)
	}
	if lock.tries != 1 || lock.releases != 1 {
		t.Fatalf("expected lock taken and released once, got tries=%d releases=%d", lock.tries, lock.releases)
	}
}

func TestRunCoordinatorSkipsWhenLockedElsewhere(t *testing.T) {
	runner := &syncRunnerFake{}
	events := &publisherFake{}
	c := newTestCoordinator(runner, events, &observerFake{}).WithRunLock(&runLockFake{acquired: false})

	result := c.Start(context.Background(), "cron")
	if result.OK || result.Error != ErrRunLocked.Error() {
		t.Fatalf("expected locked result, got %+v", result)
	}
	if runner.calls.Load() != 0 {
		t.Fatalf("runner must not be called while locked elsewhere")
	}
	if len(events.types()) != 0 {
		t.Fatalf("expected no events, got %v", events.types())
	}
	if status := c.Status(); status.Running || status.StartedAt != nil {
		t.Fatalf("expected untouched status, got %+v", status)
	}
}

func TestRunCoordinatorReportsLockError(t *testing.T) {
	runner := &syncRunnerFake{}
	c := newTestCoordinator(runner, &publisherFake{}, &observerFake{}).WithRunLock(&runLockFake{err: errors.New("connection refused")})

	result := c.Start(context.Background(), "api")
	if result.OK || result.Error == "" {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if runner.calls.Load() != 0 {
		t.Fatalf("runner must not be called without the lock")
	}
}
