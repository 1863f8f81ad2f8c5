package host

import (
	"context"
	"time"

	"github.com/SebastienMelki/dropwatch/internal/poller"
)

// Tickable is a poller as seen by the host. *poller.Poller implements it.
type Tickable interface {
	ID() string
	EvaluateTick(ctx context.Context, now time.Time) (poller.TickResult, error)
}
