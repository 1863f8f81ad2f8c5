// Package app assembles pollers, their dependencies and the host from
// configuration. It is shared by the daemon and the operator CLI.
package app

import (
	"github.com/SebastienMelki/dropwatch/internal/host"
	"github.com/SebastienMelki/dropwatch/internal/nats"
	"github.com/SebastienMelki/dropwatch/internal/poller"
	"github.com/SebastienMelki/dropwatch/internal/scanner"
	"github.com/SebastienMelki/dropwatch/internal/sightings"
	"github.com/SebastienMelki/dropwatch/internal/trigger"
	"github.com/SebastienMelki/dropwatch/internal/watermark"
)

// Config holds everything needed to build the pollers. Per-poller values
// act as defaults that the definitions file can override.
type Config struct {
	// PollersFile is the YAML file with poller definitions.
	PollersFile string `env:"POLLERS_FILE" envDefault:"pollers.yaml"`

	// Poller defaults.
	Poller poller.Config `envPrefix:"POLLER_"`

	// Host scheduler configuration.
	Host host.Config `envPrefix:"HOST_"`

	// Emitter defaults.
	Emit trigger.Config `envPrefix:"EMIT_"`

	// Webhook engine defaults.
	Webhook trigger.WebhookConfig `envPrefix:"WEBHOOK_"`

	// Watermark store configuration.
	Watermark watermark.Config `envPrefix:""`

	// NATS configuration.
	NATS nats.Config `envPrefix:""`

	// S3 connection shared by all S3 sources.
	S3 scanner.S3Config `envPrefix:"S3_"`

	// SightingsEnabled turns on the per-poller reobserved estimate.
	SightingsEnabled bool             `env:"SIGHTINGS_ENABLED" envDefault:"true"`
	Sightings        sightings.Config `envPrefix:""`
}

// Defaults returns the definition every entry of the definitions file starts
// from.
func (c Config) Defaults() host.Definition {
	return host.Definition{
		Poller:  c.Poller,
		Emit:    c.Emit,
		Webhook: c.Webhook,
	}
}
