// Package sqlstore keeps shared pick history in a SQLite picks table.
//
// The unique constraint on id is the only cross-client correctness mechanism:
// two writers recording the same id race on the insert and exactly one wins.
// It backs the picks server and can be used directly by clients that share
// the database file.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/mmcdole/pickflix/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS picks (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    id        INTEGER NOT NULL UNIQUE,
    picked_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_picks_picked_at ON picks (picked_at);
`

// timeLayout is fixed width so picked_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Pick is one row of the picks table.
type Pick struct {
	ID       int
	PickedAt time.Time
}

// Store is the SQLite-backed picks table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.HistoryStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return s, nil
}

// OpenExisting opens the database without creating the picks table.
// Operations report domain.ErrSchemaMissing until the table exists.
func OpenExisting(path string) (*Store, error) {
	return open(path)
}

func open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates the picks table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Mode() domain.StoreMode { return domain.ModeShared }

// List returns every pick, most recent first.
func (s *Store) List(ctx context.Context) ([]Pick, error) {
	const q = `SELECT id, picked_at FROM picks ORDER BY picked_at DESC, seq DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify("listing picks", err)
	}
	defer func() { _ = rows.Close() }()

	var picks []Pick
	for rows.Next() {
		var (
			p  Pick
			at string
		)
		if err := rows.Scan(&p.ID, &at); err != nil {
			return nil, classify("scanning pick row", err)
		}
		p.PickedAt, _ = time.Parse(timeLayout, at)
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing picks", err)
	}
	return picks, nil
}

// FetchAll returns the recorded ids, most recent first.
func (s *Store) FetchAll(ctx context.Context) ([]int, error) {
	picks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(picks))
	for i, p := range picks {
		ids[i] = p.ID
	}
	return ids, nil
}

// Record inserts id. A second insert of the same id fails with domain.ErrConflict.
func (s *Store) Record(ctx context.Context, id int) error {
	const q = `INSERT INTO picks (id, picked_at) VALUES (?, ?)`
	at := s.now().UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, q, id, at); err != nil {
		return classify(fmt.Sprintf("recording pick %d", id), err)
	}
	return nil
}

// ClearAll deletes every pick.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.DeleteExcept(ctx, -1)
	return err
}

// DeleteExcept deletes every pick whose id is not keep and returns the count.
func (s *Store) DeleteExcept(ctx context.Context, keep int) (int64, error) {
	const q = `DELETE FROM picks WHERE id <> ?`
	res, err := s.db.ExecContext(ctx, q, keep)
	if err != nil {
		return 0, classify("clearing picks", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// classify maps driver errors onto the store error taxonomy.
func classify(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return domain.NewStoreError(domain.KindConflict, sqliteErr.ExtendedCode.Error(),
				`duplicate key value violates unique constraint "picks_pkey"`, err)
		case strings.Contains(sqliteErr.Error(), "no such table"):
			return domain.NewStoreError(domain.KindSchemaMissing, sqliteErr.Code.Error(),
				`relation "public.picks" does not exist`, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.OtherError("%s: %w", op, err)
}
