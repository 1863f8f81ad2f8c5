package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/SebastienMelki/dropwatch/internal/host"
	"github.com/SebastienMelki/dropwatch/internal/nats"
	"github.com/SebastienMelki/dropwatch/internal/observability"
	"github.com/SebastienMelki/dropwatch/internal/poller"
	"github.com/SebastienMelki/dropwatch/internal/scanner"
	"github.com/SebastienMelki/dropwatch/internal/sightings"
	"github.com/SebastienMelki/dropwatch/internal/trigger"
	"github.com/SebastienMelki/dropwatch/internal/watermark"
)

// App is a fully wired set of pollers.
type App struct {
	Host    *host.Host
	Store   watermark.Store
	NATS    *nats.Client
	pollers map[string]*poller.Poller

	ownsNATS bool
	logger   *slog.Logger
}

// Option customises Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger     *slog.Logger
	metrics    *observability.Metrics
	natsClient *nats.Client
	s3Client   s3.ListObjectsV2APIClient
	httpClient *http.Client
	store      watermark.Store
	readOnly   bool
	engine     func(pollerID string) trigger.Engine
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithMetrics enables metrics on pollers and emitters.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *buildOptions) { o.metrics = m }
}

// WithNATS reuses an existing NATS connection instead of dialing one.
func WithNATS(c *nats.Client) Option {
	return func(o *buildOptions) { o.natsClient = c }
}

// WithS3Client sets the listing client used by S3 sources.
func WithS3Client(c s3.ListObjectsV2APIClient) Option {
	return func(o *buildOptions) { o.s3Client = c }
}

// WithHTTPClient sets the client used by webhook engines.
func WithHTTPClient(c *http.Client) Option {
	return func(o *buildOptions) { o.httpClient = c }
}

// WithStore uses store instead of opening the configured DSN.
func WithStore(store watermark.Store) Option {
	return func(o *buildOptions) { o.store = store }
}

// WithReadOnlyStore keeps cursor commits in memory on top of the configured
// store, which is then only read.
func WithReadOnlyStore() Option {
	return func(o *buildOptions) { o.readOnly = true }
}

// WithEngine overrides the engine of every poller, e.g. for dry runs.
func WithEngine(fn func(pollerID string) trigger.Engine) Option {
	return func(o *buildOptions) { o.engine = fn }
}

// Build wires one poller per definition and registers it with a new host.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg Config, defs []host.Definition, opts ...Option) (_ *App, err error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	a := &App{
		Host:    host.New(cfg.Host, o.logger),
		NATS:    o.natsClient,
		pollers: make(map[string]*poller.Poller, len(defs)),
		logger:  o.logger.With("component", "app"),
	}
	defer func() {
		if err != nil {
			if closeErr := a.Close(); closeErr != nil {
				a.logger.Error("cleanup after failed build", "error", closeErr)
			}
		}
	}()

	natsEngine := o.engine == nil && usesEngine(defs, trigger.EngineNATS)
	natsKV := isNATSKV(cfg.Watermark.DSN) && o.store == nil

	if (natsEngine || natsKV) && a.NATS == nil {
		a.NATS, err = nats.NewClient(ctx, cfg.NATS, o.logger)
		if err != nil {
			return nil, err
		}
		a.ownsNATS = true
	}

	var (
		publisher *nats.Publisher
		streamMgr *nats.StreamManager
	)
	if a.NATS != nil {
		streamMgr = nats.NewStreamManager(a.NATS.JetStream(), cfg.NATS, o.logger)
	}
	if natsEngine {
		if _, err = streamMgr.EnsureStream(ctx); err != nil {
			return nil, err
		}
		publisher = nats.NewPublisher(a.NATS.JetStream(), cfg.NATS.Stream.SubjectPrefix, o.logger)
	}

	a.Store = o.store
	if a.Store == nil {
		wmOpts := []watermark.Option{watermark.WithLogger(o.logger)}
		if natsKV {
			wmOpts = append(wmOpts, watermark.WithKVOpener(streamMgr.EnsureKeyValue))
		}
		a.Store, err = watermark.Open(ctx, cfg.Watermark, wmOpts...)
		if err != nil {
			return nil, err
		}
	}
	if o.readOnly {
		a.Store = watermark.NewOverlayStore(a.Store)
	}

	listClient := o.s3Client
	if listClient == nil && len(defs) > 0 {
		listClient, err = scanner.NewS3Client(ctx, cfg.S3, o.logger)
		if err != nil {
			return nil, err
		}
	}

	for _, def := range defs {
		var engine trigger.Engine
		if o.engine != nil {
			engine = o.engine(def.ID)
		} else {
			engine, err = newEngine(def, publisher, o.httpClient, o.metrics, o.logger)
			if err != nil {
				return nil, fmt.Errorf("poller %s: %w", def.ID, err)
			}
		}

		pollerOpts := []poller.Option{
			poller.WithLogger(o.logger),
			poller.WithMetrics(o.metrics),
		}
		if cfg.SightingsEnabled {
			pollerOpts = append(pollerOpts, poller.WithSightings(sightings.New(cfg.Sightings)))
		}

		p, err := poller.New(
			def.ID,
			a.Store,
			scanner.NewS3Scanner(listClient, def.Source, o.logger),
			trigger.NewEmitter(def.ID, engine, def.Emit, o.metrics, o.logger),
			def.Poller,
			pollerOpts...,
		)
		if err != nil {
			return nil, err
		}

		sched, err := def.ParsedSchedule()
		if err != nil {
			return nil, fmt.Errorf("poller %s: %w", def.ID, err)
		}
		if err := a.Host.Add(p, sched); err != nil {
			return nil, err
		}
		a.pollers[def.ID] = p
	}

	a.logger.Info("pollers built", "count", len(a.pollers), "store", cfg.Watermark.DSN)
	return a, nil
}

// Poller returns the poller with the given id.
func (a *App) Poller(id string) (*poller.Poller, error) {
	p, ok := a.pollers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownPoller, id)
	}
	return p, nil
}

// Close stops the host and releases the store and any NATS connection the
// app opened itself.
func (a *App) Close() error {
	a.Host.Stop()

	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.ownsNATS && a.NATS != nil {
		if err := a.NATS.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newEngine(def host.Definition, publisher *nats.Publisher, client *http.Client, metrics *observability.Metrics, logger *slog.Logger) (trigger.Engine, error) {
	switch strings.ToLower(def.Emit.Engine) {
	case trigger.EngineNATS, "":
		if publisher == nil {
			return nil, fmt.Errorf("%w: nats engine without a NATS connection", trigger.ErrUnknownEngine)
		}
		return trigger.NewNATSEngine(publisher, def.ID), nil
	case trigger.EngineWebhook:
		if metrics != nil {
			client = observability.InstrumentClient(client, def.Webhook.RequestTimeout, metrics)
		}
		return trigger.NewWebhookEngine(def.ID, def.Webhook, client, logger)
	case trigger.EngineMemory:
		return trigger.NewMemoryEngine(0), nil
	default:
		return nil, fmt.Errorf("%w: %s", trigger.ErrUnknownEngine, def.Emit.Engine)
	}
}

func usesEngine(defs []host.Definition, name string) bool {
	for _, d := range defs {
		engine := strings.ToLower(d.Emit.Engine)
		if engine == name || (engine == "" && name == trigger.EngineNATS) {
			return true
		}
	}
	return false
}

func isNATSKV(dsn string) bool {
	scheme, _, found := strings.Cut(strings.TrimSpace(dsn), "://")
	if !found {
		return false
	}
	switch strings.ToLower(scheme) {
	case "natskv", "nats":
		return true
	}
	return false
}
