package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"log/slog"
	"time"
)

// RunLock is a session-level advisory lock held on a dedicated connection for a whole run.
type RunLock struct {
	db  *sql.DB
	key int64
}

func NewRunLock(db *sql.DB) *RunLock {
	return &RunLock{db: db, key: runLockKey}
}

func (l *RunLock) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, wrapStoreError("acquire run lock", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, wrapStoreError("acquire run lock", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			slog.Warn("run_lock_release_failed", "error", err)
			// The lock lives as long as the session; drop the connection instead of pooling it.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}
	return release, true, nil
}
