package watermark

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// Config selects and tunes the watermark backend.
//
// Environment variable overrides:
//   - WATERMARK_DSN:        backend DSN (default: sqlite://data/dropwatch.db)
//   - WATERMARK_KEY_PREFIX: Redis key prefix (default: dropwatch:cursor)
//   - WATERMARK_PG_*:       PostgreSQL pool settings
type Config struct {
	DSN       string         `env:"WATERMARK_DSN"        envDefault:"sqlite://data/dropwatch.db"`
	KeyPrefix string         `env:"WATERMARK_KEY_PREFIX" envDefault:"dropwatch:cursor"`
	Postgres  PostgresConfig `envPrefix:"WATERMARK_PG_"`
}

// KVOpener returns the JetStream KV bucket named bucket, creating it when
// needed. It backs the natskv:// scheme.
type KVOpener func(ctx context.Context, bucket string) (jetstream.KeyValue, error)

// Option customises Open.
type Option func(*openOptions)

type openOptions struct {
	logger *slog.Logger
	openKV KVOpener
}

// WithLogger sets the logger passed to backends that log.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithKVOpener enables the natskv:// scheme.
func WithKVOpener(fn KVOpener) Option {
	return func(o *openOptions) { o.openKV = fn }
}

// Open builds a Store from cfg.DSN:
//
//	memory://                       in-process, not durable
//	sqlite://<path>, file://<path>  local SQLite file (a bare path works too)
//	postgres://..., postgresql://   PostgreSQL
//	redis://..., rediss://...       Redis
//	natskv://<bucket>               JetStream KV (requires WithKVOpener)
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	o := openOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := strings.TrimSpace(cfg.DSN)
	scheme, rest, found := strings.Cut(dsn, "://")
	if !found {
		scheme, rest = "", dsn
	}

	switch strings.ToLower(scheme) {
	case "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	case "", "sqlite", "file":
		store, err := NewSQLiteStore(ctx, rest)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres", "postgresql":
		store, err := NewPostgresStore(ctx, dsn, cfg.Postgres, o.logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis", "rediss":
		store, err := NewRedisStore(ctx, dsn, cfg.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "natskv", "nats":
		if o.openKV == nil {
			return nil, fmt.Errorf("%w: %s requires a JetStream connection", ErrUnsupportedScheme, scheme)
		}
		bucket, err := o.openKV(ctx, rest)
		if err != nil {
			return nil, fmt.Errorf("%w: open kv bucket %s: %w", ErrStoreFailure, rest, err)
		}
		return NewKVStore(bucket), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

