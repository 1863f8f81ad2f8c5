package poller

import (
	"context"

	"github.com/SebastienMelki/dropwatch/internal/trigger"
	"github.com/SebastienMelki/dropwatch/internal/window"
)

// Emitter submits triggers for the items of one scan. *trigger.Emitter
// implements it.
type Emitter interface {
	EmitAll(ctx context.Context, items []string, w window.Window) (trigger.Summary, error)
}
