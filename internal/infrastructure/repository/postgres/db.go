package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	schemaLockKey int64 = 2025061701
	runLockKey    int64 = 2025061702
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Tables names the three tables the sync writes. Names are interpolated into SQL,
// so they are validated as plain identifiers.
type Tables struct {
	Standard string
	Ambience string
	DirState string
}

func DefaultTables() Tables {
	return Tables{
		Standard: "imagenesocproductos",
		Ambience: "imagenesocproductos_ambiente",
		DirState: "ftp_sync_state",
	}
}

func (t Tables) withDefaults() Tables {
	def := DefaultTables()
	if t.Standard == "" {
		t.Standard = def.Standard
	}
	if t.Ambience == "" {
		t.Ambience = def.Ambience
	}
	if t.DirState == "" {
		t.DirState = def.DirState
	}
	return t
}

func (t Tables) Validate() error {
	for _, name := range []string{t.Standard, t.Ambience, t.DirState} {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the sync tables when absent.
func EnsureSchema(ctx context.Context, db *sql.DB, tables Tables) error {
	tables = tables.withDefaults()
	if err := tables.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	empresa TEXT NOT NULL,
	ejercicio INTEGER NOT NULL,
	codprodu TEXT NOT NULL,
	linea INTEGER NOT NULL,
	descripcion TEXT,
	codclaarchivo TEXT NOT NULL,
	ficadjunto TEXT NOT NULL,
	tipdocasociado TEXT,
	fecalta TIMESTAMPTZ NOT NULL,
	fecultmod TIMESTAMPTZ NOT NULL,
	fecftpmod TIMESTAMPTZ,
	UNIQUE (codprodu, codclaarchivo)
);

CREATE TABLE IF NOT EXISTS %[2]s (
	empresa TEXT NOT NULL,
	ejercicio INTEGER NOT NULL,
	codprodu TEXT NOT NULL,
	linea INTEGER NOT NULL,
	descripcion TEXT,
	codclaarchivo TEXT NOT NULL,
	nombre TEXT NOT NULL DEFAULT '',
	subtipo TEXT NOT NULL DEFAULT '',
	ficadjunto TEXT NOT NULL,
	tipdocasociado TEXT,
	fecalta TIMESTAMPTZ NOT NULL,
	fecultmod TIMESTAMPTZ NOT NULL,
	fecftpmod TIMESTAMPTZ,
	UNIQUE (codprodu, codclaarchivo, subtipo)
);

CREATE TABLE IF NOT EXISTS %[3]s (
	path TEXT PRIMARY KEY,
	last_dir_mod BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, tables.Standard, tables.Ambience, tables.DirState)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

// placeholders renders "($1,$2,...),($n,...)" rows; literal entries are emitted verbatim.
func placeholders(rows int, columns []string) string {
	var b []byte
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b = append(b, ',')
		}
		b = append(b, '(')
		for c, col := range columns {
			if c > 0 {
				b = append(b, ',')
			}
			if col != "" {
				b = append(b, col...)
				continue
			}
			b = append(b, '$')
			b = fmt.Appendf(b, "%d", n)
			n++
		}
		b = append(b, ')')
	}
	return string(b)
}
