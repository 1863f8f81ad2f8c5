package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Register the pure-Go SQLite driver. This does NOT require CGO.
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps cursors in a local SQLite database. It is the default
// backend for single-node deployments.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path in WAL mode and
// applies pending migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path must not be empty", ErrStoreFailure)
	}

	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrStoreFailure, err)
		}
	}

	// WAL mode for concurrent readers, 5s busy timeout for lock contention.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStoreFailure, err)
	}
	// Single connection keeps ":memory:" databases coherent and serialises
	// writers; cursor traffic is one row per tick.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrStoreFailure, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: run migrations: %w", ErrStoreFailure, err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, pollerID string) (time.Time, bool, error) {
	if pollerID == "" {
		return time.Time{}, false, ErrEmptyPollerID
	}

	var nanos int64
	err := s.db.QueryRowContext(ctx,
		"SELECT cursor_ns FROM poller_cursors WHERE poller_id = ?", pollerID,
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: read cursor %s: %w", ErrStoreFailure, pollerID, err)
	}

	return time.Unix(0, nanos).UTC(), true, nil
}

// Set implements Store. An older value never replaces a newer one.
func (s *SQLiteStore) Set(ctx context.Context, pollerID string, cursor time.Time) error {
	if pollerID == "" {
		return ErrEmptyPollerID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poller_cursors (poller_id, cursor_ns, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (poller_id) DO UPDATE SET
			cursor_ns  = MAX(poller_cursors.cursor_ns, excluded.cursor_ns),
			updated_at = excluded.updated_at`,
		pollerID, cursor.UTC().UnixNano(), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: write cursor %s: %w", ErrStoreFailure, pollerID, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
