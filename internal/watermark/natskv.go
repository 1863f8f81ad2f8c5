package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// kvBucket is the subset of jetstream.KeyValue used by KVStore.
type kvBucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, last uint64) (uint64, error)
}

// KVStore keeps cursors in a JetStream key-value bucket, one key per poller.
// Poller ids must be valid KV keys.
type KVStore struct {
	bucket kvBucket
}

// NewKVStore wraps a bucket obtained from the NATS stream manager.
func NewKVStore(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{bucket: bucket}
}

// Get implements Store.
func (s *KVStore) Get(ctx context.Context, pollerID string) (time.Time, bool, error) {
	if pollerID == "" {
		return time.Time{}, false, ErrEmptyPollerID
	}

	entry, err := s.bucket.Get(ctx, pollerID)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: read cursor %s: %w", ErrStoreFailure, pollerID, err)
	}

	return decodeCursor(pollerID, string(entry.Value()))
}

// Set implements Store. The write is a compare-and-set on the key's
// revision; a cursor older than the stored one is ignored.
func (s *KVStore) Set(ctx context.Context, pollerID string, cursor time.Time) error {
	if pollerID == "" {
		return ErrEmptyPollerID
	}
	value := []byte(encodeCursor(cursor))

	entry, err := s.bucket.Get(ctx, pollerID)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		_, err = s.bucket.Create(ctx, pollerID, value)
	case err != nil:
	default:
		prev, _, decodeErr := decodeCursor(pollerID, string(entry.Value()))
		if decodeErr == nil && !cursor.After(prev) {
			return nil
		}
		_, err = s.bucket.Update(ctx, pollerID, value, entry.Revision())
	}
	if err != nil {
		return fmt.Errorf("%w: write cursor %s: %w", ErrStoreFailure, pollerID, err)
	}
	return nil
}

// Close implements Store. The bucket is owned by the NATS client.
func (s *KVStore) Close() error {
	return nil
}
