package host

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SebastienMelki/dropwatch/internal/poller"
	"github.com/SebastienMelki/dropwatch/internal/scanner"
	"github.com/SebastienMelki/dropwatch/internal/trigger"
)

// Definition describes one poller in the definitions file. Fields left out
// of the file keep the values of the defaults passed to LoadDefinitions.
//
//	pollers:
//	  - id: landing-zone
//	    schedule: "*/5 * * * *"
//	    source: {bucket: raw, prefix: incoming/, suffix: .csv}
//	    buffer: 30m
//	    emit_failure_policy: hold
//	    emit: {engine: webhook, retry_limit: 5}
//	    webhook: {url: https://engine.internal/triggers}
type Definition struct {
	ID string `yaml:"id"`

	// Schedule is a cron expression or descriptor. Empty means every
	// EvaluationInterval.
	Schedule string `yaml:"schedule"`

	Source  scanner.S3Source      `yaml:"source"`
	Poller  poller.Config         `yaml:",inline"`
	Emit    trigger.Config        `yaml:"emit"`
	Webhook trigger.WebhookConfig `yaml:"webhook"`
}

// ParsedSchedule resolves the definition's schedule.
func (d Definition) ParsedSchedule() (Schedule, error) {
	return ParseSchedule(d.Schedule, d.Poller.EvaluationInterval)
}

// Validate checks a single definition.
func (d Definition) Validate() error {
	if err := poller.ValidateID(d.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if d.Source.Bucket == "" {
		return fmt.Errorf("%w: %s: missing source bucket", ErrInvalidDefinition, d.ID)
	}
	if err := d.Poller.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, d.ID, err)
	}
	if _, err := d.ParsedSchedule(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, d.ID, err)
	}
	return nil
}

type definitionsFile struct {
	Pollers []yaml.Node `yaml:"pollers"`
}

// LoadDefinitions reads poller definitions from a YAML file.
func LoadDefinitions(path string, defaults Definition) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	defs, err := ParseDefinitions(bytes.NewReader(data), defaults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions decodes poller definitions, starting every entry from
// defaults. Ids must be unique.
func ParseDefinitions(r io.Reader, defaults Definition) ([]Definition, error) {
	var file definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	seen := make(map[string]bool, len(file.Pollers))
	defs := make([]Definition, 0, len(file.Pollers))
	for i := range file.Pollers {
		def := defaults
		def.Webhook.Headers = cloneHeaders(defaults.Webhook.Headers)

		if err := file.Pollers[i].Decode(&def); err != nil {
			return nil, fmt.Errorf("poller %d: %w", i, err)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePoller, def.ID)
		}
		seen[def.ID] = true
		defs = append(defs, def)
	}
	return defs, nil
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
