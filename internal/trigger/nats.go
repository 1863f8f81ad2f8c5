package trigger

import (
	"context"
)

// TriggerPublisher publishes a trigger for key. The broker deduplicates per
// poller and key. internal/nats.Publisher implements it.
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, pollerID, key string, data []byte) (bool, error)
}

// NATSEngine submits triggers to a JetStream stream. The stream's Duplicates
// window is the engine's idempotency store: a repeated key inside the window
// is acknowledged without being stored again.
type NATSEngine struct {
	publisher TriggerPublisher
	pollerID  string
}

// NewNATSEngine creates an engine publishing on the subject for pollerID.
func NewNATSEngine(publisher TriggerPublisher, pollerID string) *NATSEngine {
	return &NATSEngine{publisher: publisher, pollerID: pollerID}
}

// Submit publishes payload; the Nats-Msg-Id is derived from the poller id and
// key.
func (n *NATSEngine) Submit(ctx context.Context, key string, payload []byte) (Receipt, error) {
	dup, err := n.publisher.PublishTrigger(ctx, n.pollerID, key, payload)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Duplicate: dup}, nil
}
