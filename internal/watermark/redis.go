package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces cursor keys in a shared Redis.
const DefaultRedisKeyPrefix = "dropwatch:cursor"

// redisSetAttempts bounds retries of a Set whose WATCH was invalidated.
const redisSetAttempts = 3

// RedisStore keeps one string key per poller holding an RFC 3339 timestamp.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore parses a redis:// or rediss:// URL and verifies the server
// is reachable.
func NewRedisStore(ctx context.Context, rawURL, keyPrefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis URL: %w", ErrStoreFailure, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %w", ErrStoreFailure, err)
	}

	return NewRedisStoreFromClient(client, keyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (s *RedisStore) key(pollerID string) string {
	return s.prefix + ":" + pollerID
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, pollerID string) (time.Time, bool, error) {
	if pollerID == "" {
		return time.Time{}, false, ErrEmptyPollerID
	}

	raw, err := s.client.Get(ctx, s.key(pollerID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: read cursor %s: %w", ErrStoreFailure, pollerID, err)
	}

	return decodeCursor(pollerID, raw)
}

// Set implements Store. Keys never expire. The read and write run in a
// WATCH transaction so a cursor older than the stored one is ignored.
func (s *RedisStore) Set(ctx context.Context, pollerID string, cursor time.Time) error {
	if pollerID == "" {
		return ErrEmptyPollerID
	}
	key := s.key(pollerID)

	advance := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if prev, _, decodeErr := decodeCursor(pollerID, raw); decodeErr == nil && !cursor.After(prev) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encodeCursor(cursor), 0)
			return nil
		})
		return err
	}

	var err error
	for range redisSetAttempts {
		err = s.client.Watch(ctx, advance, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("%w: write cursor %s: %w", ErrStoreFailure, pollerID, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeCursor(cursor time.Time) string {
	return cursor.UTC().Format(time.RFC3339Nano)
}

func decodeCursor(pollerID, raw string) (time.Time, bool, error) {
	cursor, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: corrupt cursor %s: %w", ErrStoreFailure, pollerID, err)
	}
	return cursor.UTC(), true, nil
}
