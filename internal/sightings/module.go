// Package sightings estimates how many of a poller's discovered items were
// already discovered by one of its recent ticks.
//
// Overlapping scan windows mean most items are discovered more than once;
// the estimate feeds the reobserved count reported per tick. It is advisory
// only: a false positive must never suppress a trigger, so the tracker is not
// consulted when deciding what to submit.
package sightings

import (
	"time"

	"github.com/SebastienMelki/dropwatch/internal/sightings/internal/domain"
)

// Config holds the sightings tracker configuration.
//
// Environment variable overrides:
//   - SIGHTINGS_WINDOW:   how long an item is remembered (default: 1h)
//   - SIGHTINGS_CAPACITY: expected items per window (default: 100000)
//   - SIGHTINGS_FP_RATE:  bloom filter false positive rate (default: 0.001)
type Config struct {
	Window   time.Duration `env:"SIGHTINGS_WINDOW"   envDefault:"1h"`
	Capacity uint          `env:"SIGHTINGS_CAPACITY" envDefault:"100000"`
	FPRate   float64       `env:"SIGHTINGS_FP_RATE"  envDefault:"0.001"`
}

// DefaultConfig returns a one hour window, 100k item capacity and a 0.1%
// false positive rate.
func DefaultConfig() Config {
	return Config{
		Window:   time.Hour,
		Capacity: 100_000,
		FPRate:   0.001,
	}
}

// Tracker remembers identifiers seen by a single poller. Each poller owns its
// own Tracker.
type Tracker struct {
	filter *domain.RotatingFilter
}

// New creates a Tracker. Zero-valued fields in cfg fall back to the defaults.
func New(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.FPRate <= 0 || cfg.FPRate >= 1 {
		cfg.FPRate = def.FPRate
	}
	return &Tracker{filter: domain.NewRotatingFilter(cfg.Window, cfg.Capacity, cfg.FPRate)}
}

// Observe records id at tick time now and reports whether it was probably
// seen before. Empty identifiers are ignored and report false.
func (t *Tracker) Observe(id string, now time.Time) bool {
	if id == "" {
		return false
	}
	return t.filter.Observe(id, now)
}

// ObserveAll records every id and returns how many were probably seen
// before, counting repeats within ids as well.
func (t *Tracker) ObserveAll(ids []string, now time.Time) int {
	seen := 0
	for _, id := range ids {
		if t.Observe(id, now) {
			seen++
		}
	}
	return seen
}

// Window returns the configured memory span.
func (t *Tracker) Window() time.Duration {
	return t.filter.Window()
}
