package sightings

import (
	"testing"
	"time"
)

func TestTracker_OverlappingTicks(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)

	if got := tr.ObserveAll([]string{"a.csv", "b.csv"}, now); got != 0 {
		t.Errorf("first tick reobserved = %d, want 0", got)
	}

	if got := tr.ObserveAll([]string{"b.csv", "c.csv"}, now.Add(15*time.Minute)); got != 1 {
		t.Errorf("second tick reobserved = %d, want 1", got)
	}
}

func TestTracker_EmptyIDsIgnored(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Now()

	if tr.Observe("", now) || tr.Observe("", now) {
		t.Error("Observe(\"\") = true, want false for empty identifier")
	}
}

func TestTracker_RepeatsWithinOneScan(t *testing.T) {
	tr := New(DefaultConfig())

	if got := tr.ObserveAll([]string{"a.csv", "a.csv", "a.csv"}, time.Now()); got != 2 {
		t.Errorf("reobserved = %d, want 2", got)
	}
}

func TestNew_ZeroConfigUsesDefaults(t *testing.T) {
	tr := New(Config{})

	if tr.Window() != DefaultConfig().Window {
		t.Errorf("Window() = %v, want %v", tr.Window(), DefaultConfig().Window)
	}
}
