package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/resilience"
)

type DirStateRepository struct {
	db       *sql.DB
	table    string
	executor *resilience.Executor
}

func NewDirStateRepository(db *sql.DB, tables Tables, executor *resilience.Executor) *DirStateRepository {
	return &DirStateRepository{
		db:       db,
		table:    tables.withDefaults().DirState,
		executor: executor,
	}
}

// RecordDirectoryStates upserts every usable entry in one statement and returns how many were
// usable. Existing rows are overwritten unconditionally; a path repeated in one batch keeps its
// last value, since one INSERT ... ON CONFLICT cannot touch the same row twice.
func (r *DirStateRepository) RecordDirectoryStates(ctx context.Context, entries []domain.DirectoryEntry) (int, error) {
	type row struct {
		path string
		mod  int64
	}
	rows := make([]row, 0, len(entries))
	index := make(map[string]int, len(entries))
	valid := 0
	for _, e := range entries {
		path := strings.TrimSpace(e.Path)
		if path == "" || !e.IsFinite() {
			continue
		}
		valid++
		mod := int64(math.Round(e.LastModified))
		if i, ok := index[path]; ok {
			rows[i].mod = mod
			continue
		}
		index[path] = len(rows)
		rows = append(rows, row{path: path, mod: mod})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(rows)*2)
	for _, rw := range rows {
		args = append(args, rw.path, rw.mod)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (path, last_dir_mod)
VALUES %s
ON CONFLICT (path)
DO UPDATE SET
	last_dir_mod = EXCLUDED.last_dir_mod,
	updated_at = NOW()
`, r.table, placeholders(len(rows), []string{"", ""}))

	err := r.executor.Execute(ctx, "postgres.dir_state.upsert", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	}, classifyStoreError)
	if err != nil {
		return 0, wrapStoreError("record directory states", err)
	}
	return valid, nil
}

// LoadDirectoryStates returns the stored markers for the given path and everything below it.
func (r *DirStateRepository) LoadDirectoryStates(ctx context.Context, prefix string) (map[string]int64, error) {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	query := fmt.Sprintf(`
SELECT path, last_dir_mod
FROM %s
WHERE path = $1 OR path LIKE $2
`, r.table)

	out, err := resilience.Call(ctx, r.executor, "postgres.dir_state.load", func(ctx context.Context) (map[string]int64, error) {
		rows, err := r.db.QueryContext(ctx, query, prefix, escapeLike(prefix)+"/%")
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		states := make(map[string]int64)
		for rows.Next() {
			var path string
			var mod int64
			if err := rows.Scan(&path, &mod); err != nil {
				return nil, fmt.Errorf("scan directory state: %w", err)
			}
			states[path] = mod
		}
		return states, rows.Err()
	}, classifyStoreError)
	if err != nil {
		return nil, wrapStoreError("load directory states", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
