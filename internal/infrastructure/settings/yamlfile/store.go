package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

// Store keeps runtime settings in a YAML file. A missing file reads as defaults.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	if path == "" {
		path = "./data/settings.yaml"
	}
	return &Store{path: path}
}

func (s *Store) Load(_ context.Context) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, domain.WrapError(domain.ErrConfiguration, "read settings", err)
	}

	var settings domain.Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, domain.WrapError(domain.ErrConfiguration, "decode settings", err)
	}
	return settings.Normalize(), nil
}

func (s *Store) Save(_ context.Context, settings domain.Settings) error {
	data, err := yaml.Marshal(settings.Normalize())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
