package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// PollerHeader carries the id of the poller that emitted a trigger.
const PollerHeader = "Dropwatch-Poller"

// jsPublisher is the subset of jetstream.JetStream the publisher needs.
type jsPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher handles publishing trigger requests to NATS JetStream.
type Publisher struct {
	js            jsPublisher
	subjectPrefix string
	logger        *slog.Logger
}

// NewPublisher creates a new trigger publisher. Subjects are formed as
// <subjectPrefix>.<pollerID>.
func NewPublisher(js jetstream.JetStream, subjectPrefix string, logger *slog.Logger) *Publisher {
	return newPublisher(js, subjectPrefix, logger)
}

func newPublisher(js jsPublisher, subjectPrefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		js:            js,
		subjectPrefix: subjectPrefix,
		logger:        logger.With("component", "publisher"),
	}
}

// PublishTrigger publishes data for the item identified by key. The stream
// deduplicates on Nats-Msg-Id across all subjects, so the id is scoped to the
// poller (see MsgID). The returned flag is true when the stream had already
// stored this poller's key inside its Duplicates window.
func (p *Publisher) PublishTrigger(ctx context.Context, pollerID, key string, data []byte) (bool, error) {
	subject, err := p.Subject(pollerID)
	if err != nil {
		return false, err
	}
	msgID := MsgID(pollerID, key)

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, msgID)
	msg.Header.Set(PollerHeader, pollerID)

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPublishFailure, err)
	}

	p.logger.Debug("trigger published",
		"msg_id", msgID,
		"subject", subject,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate,
	)

	return ack.Duplicate, nil
}

// MsgID is the Nats-Msg-Id for key published by pollerID. Poller ids cannot
// contain '/', so distinct (poller, key) pairs never share an id.
func MsgID(pollerID, key string) string {
	return pollerID + "/" + key
}

// Subject derives the publish subject for a poller.
// Format: {prefix}.{poller_id}.
func (p *Publisher) Subject(pollerID string) (string, error) {
	if pollerID == "" {
		return "", fmt.Errorf("%w: empty poller id", ErrInvalidSubject)
	}
	if strings.ContainsAny(pollerID, ".*> \t\r\n") {
		return "", fmt.Errorf("%w: poller id %q is not a single subject token", ErrInvalidSubject, pollerID)
	}
	if p.subjectPrefix == "" {
		return pollerID, nil
	}
	return p.subjectPrefix + "." + pollerID, nil
}
