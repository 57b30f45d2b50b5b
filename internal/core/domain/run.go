package domain

const (
	TopicSync = "sync"
	TopicLog  = "log"
)

const (
	EventSyncStart  = "syncStart"
	EventBrandStart = "brandStart"
	EventBrandEnd   = "brandEnd"
	EventSyncEnd    = "syncEnd"
)

// RunStatus is the process-wide view of reconciliation runs. Timestamps are epoch milliseconds.
type RunStatus struct {
	Running          bool      `json:"running"`
	RunID            string    `json:"runId,omitempty"`
	Source           *string   `json:"source"`
	StartedAt        *int64    `json:"startedAt"`
	FinishedAt       *int64    `json:"finishedAt"`
	LastSuccessAt    *int64    `json:"lastSuccessAt"`
	LastErrorAt      *int64    `json:"lastErrorAt"`
	LastErrorMessage *string   `json:"lastErrorMessage"`
	LastStats        *RunStats `json:"lastStats"`
	CurrentUnit      *string   `json:"currentBrand"`
	UnitIndex        *int      `json:"brandIndex"`
	UnitTotal        *int      `json:"brandTotal"`
}

// Clone returns a deep copy safe to hand to readers.
func (s RunStatus) Clone() RunStatus {
	out := s
	out.Source = clonePtr(s.Source)
	out.StartedAt = clonePtr(s.StartedAt)
	out.FinishedAt = clonePtr(s.FinishedAt)
	out.LastSuccessAt = clonePtr(s.LastSuccessAt)
	out.LastErrorAt = clonePtr(s.LastErrorAt)
	out.LastErrorMessage = clonePtr(s.LastErrorMessage)
	out.CurrentUnit = clonePtr(s.CurrentUnit)
	out.UnitIndex = clonePtr(s.UnitIndex)
	out.UnitTotal = clonePtr(s.UnitTotal)
	if s.LastStats != nil {
		stats := *s.LastStats
		stats.Brands = append([]BrandStats(nil), s.LastStats.Brands...)
		out.LastStats = &stats
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type RunResult struct {
	OK    bool      `json:"ok"`
	Stats *RunStats `json:"stats,omitempty"`
	Error string    `json:"error,omitempty"`
}

type BrandStats struct {
	Brand           string `json:"brand"`
	FilesSeen       int    `json:"filesSeen"`
	FilesSkipped    int    `json:"filesSkipped"`
	DirsRecorded    int    `json:"dirsRecorded"`
	UpdatedStandard int    `json:"updatedStandard"`
	UpdatedAmbience int    `json:"updatedAmbience"`
	BranchFailures  int    `json:"branchFailures"`
}

type RunStats struct {
	Brands          []BrandStats `json:"brands"`
	FilesSeen       int          `json:"filesSeen"`
	FilesSkipped    int          `json:"filesSkipped"`
	DirsRecorded    int          `json:"dirsRecorded"`
	UpdatedStandard int          `json:"updatedStandard"`
	UpdatedAmbience int          `json:"updatedAmbience"`
	BranchFailures  int          `json:"branchFailures"`
}

func (s *RunStats) Add(b BrandStats) {
	s.Brands = append(s.Brands, b)
	s.FilesSeen += b.FilesSeen
	s.FilesSkipped += b.FilesSkipped
	s.DirsRecorded += b.DirsRecorded
	s.UpdatedStandard += b.UpdatedStandard
	s.UpdatedAmbience += b.UpdatedAmbience
	s.BranchFailures += b.BranchFailures
}

// SyncEvent is published on TopicSync.
type SyncEvent struct {
	Type   string `json:"type"`
	TS     int64  `json:"ts"`
	RunID  string `json:"runId,omitempty"`
	Source string `json:"source,omitempty"`
	Brand  string `json:"brand,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Total  *int   `json:"total,omitempty"`
	OK     *bool  `json:"ok,omitempty"`
	Stats  any    `json:"stats,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LogEvent is published on TopicLog.
type LogEvent struct {
	TS    int64          `json:"ts"`
	ISO   string         `json:"iso"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Data  map[string]any `json:"data,omitempty"`
}

// Event is the envelope delivered to broadcast subscribers.
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}
