// Command dropwatch runs the configured pollers: each scans its source on a
// schedule and submits deduplicated triggers for newly visible items.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/SebastienMelki/dropwatch/internal/app"
	"github.com/SebastienMelki/dropwatch/internal/host"
	"github.com/SebastienMelki/dropwatch/internal/observability"
)

// Config holds all daemon configuration.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is the log format (json, text).
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// MetricsAddr is the address for the Prometheus metrics endpoint.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9092"`

	// ShutdownTimeout bounds how long in-flight ticks may run after a
	// shutdown signal.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// App configuration.
	App app.Config `envPrefix:""`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting dropwatch",
		"log_level", cfg.LogLevel,
		"pollers_file", cfg.App.PollersFile,
		"watermark_dsn", cfg.App.Watermark.DSN,
		"max_parallel_pollers", cfg.App.Host.MaxParallelPollers,
		"metrics_addr", cfg.MetricsAddr,
	)

	defs, err := host.LoadDefinitions(cfg.App.PollersFile, cfg.App.Defaults())
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return errors.New("no pollers defined in " + cfg.App.PollersFile)
	}

	// Ticks run with tickCtx so that a slow shutdown can abort them before
	// they commit.
	tickCtx, cancelTicks := context.WithCancel(context.Background())
	defer cancelTicks()

	// Initialize observability (OTel + Prometheus)
	obs, err := observability.New("dropwatch")
	if err != nil {
		return err
	}
	defer func() {
		if shutErr := obs.Shutdown(context.Background()); shutErr != nil {
			logger.Error("observability shutdown error", "error", shutErr)
		}
	}()

	// Create metrics instruments
	metrics, err := observability.NewMetrics(obs.Meter())
	if err != nil {
		return err
	}

	a, err := app.Build(tickCtx, cfg.App, defs,
		app.WithLogger(logger),
		app.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	// Start metrics and health HTTP server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", obs.MetricsHandler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if a.NATS != nil {
			if err := a.NATS.HealthCheck(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if srvErr := metricsServer.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", srvErr)
		}
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := a.Host.Start(tickCtx); err != nil {
		return err
	}

	logger.Info("dropwatch started", "pollers", a.Host.Pollers())

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	// Graceful shutdown: stop scheduling and give in-flight ticks until the
	// timeout before cancelling them. A cancelled tick leaves its cursor
	// untouched.
	logger.Info("initiating graceful shutdown", "timeout", cfg.ShutdownTimeout)
	timer := time.AfterFunc(cfg.ShutdownTimeout, cancelTicks)
	if err := a.Close(); err != nil {
		logger.Error("app close error", "error", err)
	}
	timer.Stop()

	// Stop metrics server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("dropwatch stopped")
	return nil
}

// setupLogger creates a logger based on configuration.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
