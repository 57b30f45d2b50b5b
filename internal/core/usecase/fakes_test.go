package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

type imageStoreFake struct {
	mu          sync.Mutex
	standard    [][]domain.CandidateRecord
	ambience    [][]domain.CandidateRecord
	standardErr error
	ambienceErr error
}

func (f *imageStoreFake) UpsertStandard(_ context.Context, records []domain.CandidateRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.standard = append(f.standard, records)
	if f.standardErr != nil {
		return 0, f.standardErr
	}
	return len(records), nil
}

func (f *imageStoreFake) UpsertAmbience(_ context.Context, records []domain.CandidateRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ambience = append(f.ambience, records)
	if f.ambienceErr != nil {
		return 0, f.ambienceErr
	}
	return len(records), nil
}

type observerFake struct {
	mu       sync.Mutex
	started  []string
	finished []error
	upserted map[domain.Branch]int
	failed   []domain.Branch
	dirs     int
}

func (f *observerFake) RunStarted(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, source)
}

func (f *observerFake) RunFinished(_ string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, err)
}

func (f *observerFake) BranchUpserted(branch domain.Branch, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserted == nil {
		f.upserted = map[domain.Branch]int{}
	}
	f.upserted[branch] += rows
}

func (f *observerFake) BranchFailed(branch domain.Branch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, branch)
}

func (f *observerFake) DirectoriesRecorded(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs += count
}

type settingsStoreFake struct {
	settings domain.Settings
	loadErr  error
	saveErr  error
	saved    []domain.Settings
}

func (f *settingsStoreFake) Load(context.Context) (domain.Settings, error) {
	if f.loadErr != nil {
		return domain.Settings{}, f.loadErr
	}
	return f.settings, nil
}

func (f *settingsStoreFake) Save(_ context.Context, settings domain.Settings) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, settings)
	f.settings = settings
	return nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.SyncEvent
}

func (f *publisherFake) Publish(topic string, payload any) {
	if topic != domain.TopicSync {
		return
	}
	evt, ok := payload.(domain.SyncEvent)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *publisherFake) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, evt := range f.events {
		out = append(out, evt.Type)
	}
	return out
}
