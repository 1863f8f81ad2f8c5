package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SebastienMelki/dropwatch/internal/window"
)

// Request is a single trigger submission. Key is the deduplication key the
// downstream engine uses to collapse repeated submissions of the same item.
type Request struct {
	Key     string
	Payload Payload
}

// Payload is the JSON body delivered with every trigger.
type Payload struct {
	PollerID    string    `json:"poller_id"`
	Item        string    `json:"item"`
	RequestID   string    `json:"request_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// DedupKey derives the deduplication key for an item. The key is the
// identifier itself, byte for byte; only blank identifiers are rejected.
func DedupKey(item string) (string, error) {
	if strings.TrimSpace(item) == "" {
		return "", ErrEmptyIdentifier
	}
	return item, nil
}

// NewRequest builds the request for item discovered in w. RequestID is unique
// per submission and never takes part in deduplication.
func NewRequest(pollerID, item string, w window.Window, now time.Time) (Request, error) {
	key, err := DedupKey(item)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Key: key,
		Payload: Payload{
			PollerID:    pollerID,
			Item:        item,
			RequestID:   uuid.NewString(),
			WindowStart: w.Start.UTC(),
			WindowEnd:   w.End.UTC(),
			EmittedAt:   now.UTC(),
		},
	}, nil
}

// Body encodes the payload.
func (r Request) Body() ([]byte, error) {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger payload: %w", err)
	}
	return data, nil
}
