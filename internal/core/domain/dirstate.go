package domain

import (
	"encoding/json"
	"math"
	"time"
)

// DirectoryEntry is one directory observation sent for persistence.
// LastModified stays a float so non-finite values can be detected and dropped.
type DirectoryEntry struct {
	Path         string  `json:"path"`
	LastModified float64 `json:"lastDirMod"`
}

func (e *DirectoryEntry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Path         LooseString     `json:"path"`
		LastDirMod   json.RawMessage `json:"lastDirMod"`
		LastDirModSC json.RawMessage `json:"last_dir_mod"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Path = aux.Path.Value

	raw := aux.LastDirModSC
	if len(raw) == 0 || string(raw) == "null" {
		raw = aux.LastDirMod
	}
	e.LastModified = 0
	if f, ok := parseLooseNumber(raw); ok {
		e.LastModified = f
	}
	return nil
}

func (e DirectoryEntry) IsFinite() bool {
	return !math.IsNaN(e.LastModified) && !math.IsInf(e.LastModified, 0)
}

type DirectoryState struct {
	Path         string    `json:"path"`
	LastModified int64     `json:"last_dir_mod"`
	UpdatedAt    time.Time `json:"updated_at"`
}
