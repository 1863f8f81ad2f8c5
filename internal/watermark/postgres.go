package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const postgresOperationTimeout = 5 * time.Second

// PostgresConfig holds connection pool settings for the PostgreSQL backend.
type PostgresConfig struct {
	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"5"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `env:"MAX_IDLE_CONNS" envDefault:"2"`

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// PostgresStore keeps cursors in a PostgreSQL table shared by every daemon
// pointed at the same database.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn, verifies the connection and creates the
// cursor table when missing.
func NewPostgresStore(ctx context.Context, dsn string, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "watermark-postgres")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStoreFailure, err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	if err := db.PingContext(opCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrStoreFailure, err)
	}

	if _, err := db.ExecContext(opCtx, `
		CREATE TABLE IF NOT EXISTS poller_cursors (
			poller_id  TEXT PRIMARY KEY,
			cursor_ns  BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create table: %w", ErrStoreFailure, err)
	}

	logger.Info("connected to watermark database")

	return newPostgresStoreFromDB(db, logger), nil
}

func newPostgresStoreFromDB(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, pollerID string) (time.Time, bool, error) {
	if pollerID == "" {
		return time.Time{}, false, ErrEmptyPollerID
	}

	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	var nanos int64
	err := s.db.QueryRowContext(ctx,
		"SELECT cursor_ns FROM poller_cursors WHERE poller_id = $1", pollerID,
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
func (s *PostgresStore) Set(ctx context.Context, pollerID string, cursor time.Time) error {
	if pollerID == "" {
		return ErrEmptyPollerID
	}

	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poller_cursors (poller_id, cursor_ns, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (poller_id) DO UPDATE SET
			cursor_ns  = GREATEST(poller_cursors.cursor_ns, EXCLUDED.cursor_ns),
			updated_at = NOW()`,
		pollerID, cursor.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: write cursor %s: %w", ErrStoreFailure, pollerID, err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
