package poller

import (
	"time"

	"github.com/SebastienMelki/dropwatch/internal/window"
)

// State is a step of the tick cycle.
type State int

const (
	StateIdle State = iota
	StateReadingCursor
	StateScanning
	StateEmitting
	StateCommitting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadingCursor:
		return "reading_cursor"
	case StateScanning:
		return "scanning"
	case StateEmitting:
		return "emitting"
	case StateCommitting:
		return "committing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the outcome of a tick.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// TickResult reports what a tick did.
type TickResult struct {
	PollerID string
	Status   Status
	Window   window.Window

	// Discovered is the number of identifiers the scan returned.
	Discovered int
	// Emitted counts triggers the engine acknowledged, duplicates included.
	Emitted int
	// Duplicates counts acknowledged triggers the engine had already seen.
	Duplicates int
	// Skipped counts blank identifiers.
	Skipped int
	// Failed counts items whose submission failed after all retries.
	Failed int
	// Reobserved estimates how many discovered items an earlier tick also
	// saw. It is approximate and informational only.
	Reobserved int

	// Cursor is the committed cursor; zero unless Status is committed.
	Cursor time.Time
	// FailedState is the state the tick failed in.
	FailedState State
	Duration    time.Duration
}
