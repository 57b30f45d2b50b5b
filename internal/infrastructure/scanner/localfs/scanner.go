package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kirillkom/catalog-image-sync/internal/core/catalog"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

// Scanner walks brand folders of a mounted image share.
type Scanner struct {
	root     string
	excluded []string
}

func New(root string, excludedFolders []string) (*Scanner, error) {
	if root == "" {
		root = "./data/images"
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}
	if excludedFolders == nil {
		excludedFolders = catalog.DefaultExcludedFolderTokens
	}
	return &Scanner{root: root, excluded: excludedFolders}, nil
}

// Scan reports image files of every directory whose modification time differs from its
// known marker, plus the new markers of those directories. Unchanged directories are still
// descended into because nested changes do not touch their parent's mtime.
func (s *Scanner) Scan(ctx context.Context, brand string, known map[string]int64) (domain.ScanResult, error) {
	var result domain.ScanResult

	brand = strings.Trim(strings.TrimSpace(brand), "/")
	if brand == "" {
		return result, domain.WrapError(domain.ErrInvalidInput, "scan", errors.New("empty brand"))
	}
	base := filepath.Join(s.root, filepath.FromSlash(brand))
	if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
		slog.Warn("brand_folder_missing", "brand", brand, "path", base)
		return result, nil
	}

	unchanged := make(map[string]bool)
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		logical := path.Join("/", brand, rel)

		if d.IsDir() {
			if rel != "." && catalog.IsExcludedFolder(d.Name(), s.excluded) {
				return filepath.SkipDir
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			mod := info.ModTime().UnixMilli()
			if prev, ok := known[logical]; ok && prev == mod {
				unchanged[p] = true
				return nil
			}
			result.Directories = append(result.Directories, domain.DirectoryEntry{Path: logical, LastModified: float64(mod)})
			return nil
		}

		if unchanged[filepath.Dir(p)] {
			return nil
		}
		if !d.Type().IsRegular() || catalog.IsIgnorableFile(d.Name()) || !catalog.IsImageFile(d.Name()) {
			result.FilesSkipped++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		var folders []string
		if dir := path.Dir(rel); dir != "." {
			folders = strings.Split(dir, "/")
		}
		result.Files = append(result.Files, domain.FileObservation{
			Path:       logical,
			Folders:    folders,
			Name:       d.Name(),
			ModifiedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("walk %s: %w", brand, err)
	}
	return result, nil
}
