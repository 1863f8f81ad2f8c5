// Package watermark persists the per-poller cursor: the instant up to which a
// poller has scanned its source and queued triggers.
//
// A Store holds one value per poller id. Each poller is the only writer of
// its own entry, so backends need durability but no cross-writer
// coordination. Backends are selected by DSN scheme, see Open.
package watermark

import (
	"context"
	"time"
)

// Store reads and writes poller cursors.
type Store interface {
	// Get returns the committed cursor for pollerID. ok is false when the
	// poller has never committed (bootstrap).
	Get(ctx context.Context, pollerID string) (cursor time.Time, ok bool, err error)

	// Set durably records cursor as the committed value for pollerID.
	Set(ctx context.Context, pollerID string, cursor time.Time) error

	// Close releases backend resources.
	Close() error
}
