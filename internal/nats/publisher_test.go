package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// fakeJS mimics a stream with a Duplicates window: a repeated msg id is
// acknowledged with Duplicate set and not stored again.
type fakeJS struct {
	seen     map[string]bool
	subjects []string
	pollers  []string
	err      error
}

func (f *fakeJS) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}

	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.subjects = append(f.subjects, msg.Subject)
	f.pollers = append(f.pollers, msg.Header.Get(PollerHeader))

	id := msg.Header.Get(nats.MsgIdHdr)
	ack := &jetstream.PubAck{Stream: "DROPWATCH_TRIGGERS", Sequence: uint64(len(f.seen) + 1)}
	if f.seen[id] {
		ack.Duplicate = true
		return ack, nil
	}
	f.seen[id] = true
	return ack, nil
}

func TestSubject(t *testing.T) {
	p := newPublisher(&fakeJS{}, "triggers", nil)

	tests := []struct {
		name     string
		pollerID string
		expected string
		wantErr  bool
	}{
		{name: "plain id", pollerID: "orders", expected: "triggers.orders"},
		{name: "dash and underscore", pollerID: "s3-landing_zone", expected: "triggers.s3-landing_zone"},
		{name: "dot rejected", pollerID: "s3.landing", wantErr: true},
		{name: "wildcards rejected", pollerID: "a*b>c", wantErr: true},
		{name: "space rejected", pollerID: "  orders ", wantErr: true},
		{name: "empty id", pollerID: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Subject(tt.pollerID)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSubject) {
					t.Fatalf("Subject(%q) error = %v, want ErrInvalidSubject", tt.pollerID, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Subject(%q) error = %v", tt.pollerID, err)
			}
			if got != tt.expected {
				t.Errorf("Subject(%q) = %q, want %q", tt.pollerID, got, tt.expected)
			}
		})
	}
}

func TestPublishTrigger_ReportsDuplicates(t *testing.T) {
	js := &fakeJS{}
	p := newPublisher(js, "triggers", nil)
	ctx := context.Background()

	dup, err := p.PublishTrigger(ctx, "orders", "obj-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("first publish error = %v", err)
	}
	if dup {
		t.Error("first publish reported duplicate")
	}

	dup, err = p.PublishTrigger(ctx, "orders", "obj-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("second publish error = %v", err)
	}
	if !dup {
		t.Error("second publish of same msg id not reported as duplicate")
	}

	if len(js.subjects) != 2 || js.subjects[0] != "triggers.orders" {
		t.Errorf("subjects = %v", js.subjects)
	}
	if js.pollers[0] != "orders" {
		t.Errorf("poller header = %q, want orders", js.pollers[0])
	}
}

func TestPublishTrigger_KeysScopedPerPoller(t *testing.T) {
	js := &fakeJS{}
	p := newPublisher(js, "triggers", nil)
	ctx := context.Background()

	for _, pollerID := range []string{"bucket-a", "bucket-b"} {
		dup, err := p.PublishTrigger(ctx, pollerID, "data/2024-01-01.csv", []byte(`{}`))
		if err != nil {
			t.Fatalf("publish for %s error = %v", pollerID, err)
		}
		if dup {
			t.Errorf("poller %s: same key from another poller reported as duplicate", pollerID)
		}
	}

	dup, err := p.PublishTrigger(ctx, "bucket-b", "data/2024-01-01.csv", []byte(`{}`))
	if err != nil {
		t.Fatalf("republish error = %v", err)
	}
	if !dup {
		t.Error("republish by the same poller not reported as duplicate")
	}
}

func TestMsgID(t *testing.T) {
	if got := MsgID("bucket-a", "data/x.csv"); got != "bucket-a/data/x.csv" {
		t.Errorf("MsgID() = %q", got)
	}
	if MsgID("bucket-a", "x.csv") == MsgID("bucket-b", "x.csv") {
		t.Error("MsgID() collides across pollers")
	}
}

func TestPublishTrigger_WrapsErrors(t *testing.T) {
	p := newPublisher(&fakeJS{err: errors.New("no responders")}, "triggers", nil)

	_, err := p.PublishTrigger(context.Background(), "orders", "obj-1", nil)
	if !errors.Is(err, ErrPublishFailure) {
		t.Fatalf("error = %v, want ErrPublishFailure", err)
	}
}

func TestStorageType(t *testing.T) {
	if storageType("MEMORY") != jetstream.MemoryStorage {
		t.Error("MEMORY should map to memory storage")
	}
	if storageType("file") != jetstream.FileStorage {
		t.Error("file should map to file storage")
	}
	if storageType("") != jetstream.FileStorage {
		t.Error("empty should default to file storage")
	}
}
