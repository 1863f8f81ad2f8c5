// Package nats provides NATS JetStream integration for trigger delivery and
// cursor storage.
package nats

import (
	"time"
)

// Config holds NATS connection and stream configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string `env:"NATS_URL" envDefault:"nats://localhost:4222"`

	// Name is the client connection name for monitoring
	Name string `env:"NATS_CLIENT_NAME" envDefault:"dropwatch"`

	// MaxReconnects is the maximum number of reconnection attempts
	MaxReconnects int `env:"NATS_MAX_RECONNECTS" envDefault:"60"`

	// ReconnectWait is the time to wait between reconnection attempts
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`

	// Timeout is the connection timeout
	Timeout time.Duration `env:"NATS_TIMEOUT" envDefault:"5s"`

	// DrainTimeout bounds how long shutdown waits for pending publishes
	DrainTimeout time.Duration `env:"NATS_DRAIN_TIMEOUT" envDefault:"10s"`

	// CredsFile is a user credentials file; it takes precedence over Token
	CredsFile string `env:"NATS_CREDS_FILE"`

	// Token is an authentication token
	Token string `env:"NATS_TOKEN"`

	// Stream configuration
	Stream StreamConfig `envPrefix:"NATS_STREAM_"`

	// KV configuration for the cursor bucket
	KV KVConfig `envPrefix:"NATS_KV_"`
}

// StreamConfig holds JetStream stream configuration for trigger requests.
type StreamConfig struct {
	// Name is the stream name
	Name string `env:"NAME" envDefault:"DROPWATCH_TRIGGERS"`

	// SubjectPrefix is prepended to the poller id to form the publish subject
	SubjectPrefix string `env:"SUBJECT_PREFIX" envDefault:"triggers"`

	// Subjects are the subjects to capture
	Subjects []string `env:"SUBJECTS" envDefault:"triggers.>"`

	// Duplicates is the window in which the stream drops messages that
	// repeat a Nats-Msg-Id. It bounds how long a dedup key is remembered.
	Duplicates time.Duration `env:"DUPLICATES" envDefault:"24h"`

	// MaxAge is the maximum age of messages in the stream
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"168h"` // 7 days

	// MaxBytes is the maximum size of the stream in bytes
	MaxBytes int64 `env:"MAX_BYTES" envDefault:"1073741824"` // 1GB

	// Replicas is the number of replicas for the stream
	Replicas int `env:"REPLICAS" envDefault:"1"`

	// Storage is the storage type (file or memory)
	Storage string `env:"STORAGE" envDefault:"file"`
}

// KVConfig holds JetStream key-value bucket configuration.
type KVConfig struct {
	// Bucket is the bucket name
	Bucket string `env:"BUCKET" envDefault:"dropwatch_cursors"`

	// Replicas is the number of replicas for the bucket
	Replicas int `env:"REPLICAS" envDefault:"1"`

	// Storage is the storage type (file or memory)
	Storage string `env:"STORAGE" envDefault:"file"`
}
