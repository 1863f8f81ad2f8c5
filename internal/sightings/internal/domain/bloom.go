// Package domain contains the rotating bloom filter behind the sightings
// tracker. Two filters (current and previous) are rotated as source time
// advances, so a key stays visible for between one half and one full window.
package domain

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// RotatingFilter remembers keys for a bounded span of tick time. Keys are
// added to "current"; lookups check "current" and "previous". Rotation is
// driven by the timestamps passed to Observe rather than by a background
// goroutine, which keeps the filter deterministic under a fake clock.
type RotatingFilter struct {
	mu         sync.Mutex
	current    *bloom.BloomFilter
	previous   *bloom.BloomFilter
	window     time.Duration
	capacity   uint
	fpRate     float64
	lastRotate time.Time
}

// NewRotatingFilter creates a filter sized for capacity keys per window at
// the given false positive rate.
func NewRotatingFilter(window time.Duration, capacity uint, fpRate float64) *RotatingFilter {
	return &RotatingFilter{
		current:  bloom.NewWithEstimates(capacity, fpRate),
		previous: bloom.NewWithEstimates(capacity, fpRate),
		window:   window,
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Observe records key at instant now and reports whether it was probably
// recorded before within the window. False positives are possible at the
// configured rate; false negatives are not, for keys younger than window/2.
func (f *RotatingFilter) Observe(key string, now time.Time) bool {
	data := []byte(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.maybeRotate(now)

	if f.current.Test(data) || f.previous.Test(data) {
		return true
	}
	f.current.Add(data)
	return false
}

// maybeRotate rotates once per elapsed half window. A jump of a full window
// or more clears both filters.
func (f *RotatingFilter) maybeRotate(now time.Time) {
	if f.lastRotate.IsZero() {
		f.lastRotate = now
		return
	}

	half := f.window / 2
	if half <= 0 {
		return
	}

	elapsed := now.Sub(f.lastRotate)
	switch {
	case elapsed >= f.window:
		f.previous = bloom.NewWithEstimates(f.capacity, f.fpRate)
		f.current = bloom.NewWithEstimates(f.capacity, f.fpRate)
		f.lastRotate = now
	case elapsed >= half:
		f.previous = f.current
		f.current = bloom.NewWithEstimates(f.capacity, f.fpRate)
		f.lastRotate = now
	}
}

// Window returns the configured window duration.
func (f *RotatingFilter) Window() time.Duration {
	return f.window
}
