package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamManager handles JetStream stream and bucket provisioning.
type StreamManager struct {
	js     jetstream.JetStream
	config Config
	logger *slog.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(js jetstream.JetStream, cfg Config, logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		js:     js,
		config: cfg,
		logger: logger.With("component", "stream-manager"),
	}
}

func storageType(s string) jetstream.StorageType {
	if strings.ToLower(s) == "memory" {
		return jetstream.MemoryStorage
	}
	return jetstream.FileStorage
}

// EnsureStream creates or updates the trigger stream. The Duplicates window
// makes the stream drop any publish whose Nats-Msg-Id it has already seen
// within that window.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	sc := m.config.Stream

	duplicates := sc.Duplicates
	if sc.MaxAge > 0 && duplicates > sc.MaxAge {
		m.logger.Warn("duplicates window exceeds max age, clamping",
			"duplicates", duplicates,
			"max_age", sc.MaxAge,
		)
		duplicates = sc.MaxAge
	}

	streamCfg := jetstream.StreamConfig{
		Name:        sc.Name,
		Subjects:    sc.Subjects,
		Storage:     storageType(sc.Storage),
		MaxAge:      sc.MaxAge,
		MaxBytes:    sc.MaxBytes,
		Replicas:    sc.Replicas,
		Duplicates:  duplicates,
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	// Try to get existing stream first
	_, err := m.js.Stream(ctx, sc.Name)
	if err == nil {
		m.logger.Info("updating existing stream", "name", sc.Name)
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to update stream: %w", err)
		}
		return stream, nil
	}

	m.logger.Info("creating new stream", "name", sc.Name, "subjects", sc.Subjects)
	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	m.logger.Info("stream created",
		"name", sc.Name,
		"storage", sc.Storage,
		"duplicates", duplicates,
		"max_age", sc.MaxAge,
	)

	return stream, nil
}

// EnsureKeyValue creates or updates a key-value bucket. An empty bucket name
// selects the configured cursor bucket. Only the latest revision of a key is
// kept.
func (m *StreamManager) EnsureKeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	if bucket == "" {
		bucket = m.config.KV.Bucket
	}

	kv, err := m.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "dropwatch poller cursors",
		History:     1,
		Storage:     storageType(m.config.KV.Storage),
		Replicas:    m.config.KV.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure key-value bucket %s: %w", bucket, err)
	}

	m.logger.Info("key-value bucket ready", "bucket", bucket)
	return kv, nil
}

// GetStreamInfo returns information about the trigger stream.
func (m *StreamManager) GetStreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.config.Stream.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	return info, nil
}
