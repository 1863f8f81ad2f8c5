package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"

	"github.com/SebastienMelki/dropwatch/internal/app"
	"github.com/SebastienMelki/dropwatch/internal/host"
	"github.com/SebastienMelki/dropwatch/internal/poller"
	"github.com/SebastienMelki/dropwatch/internal/trigger"
	"github.com/SebastienMelki/dropwatch/internal/window"
)

type cli struct {
	out io.Writer
	now func() time.Time

	// extra is appended to the options passed to app.Build.
	extra []app.Option

	pollersFile string
	output      string
	at          string
	verbose     bool
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, now: time.Now}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "dropwatchctl",
		Short:        "Inspect and drive dropwatch pollers",
		SilenceUsage: true,
	}
	root.SetOut(c.out)

	root.PersistentFlags().StringVar(&c.pollersFile, "pollers", "", "poller definitions file (default: $POLLERS_FILE)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "text", "output format: text or json")
	root.PersistentFlags().StringVar(&c.at, "at", "", "evaluate at this RFC3339 time instead of now")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(c.listCmd(), c.cursorCmd(), c.windowCmd(), c.tickCmd())
	return root
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured pollers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, defs, err := c.definitions()
			if err != nil {
				return err
			}

			if c.output == "json" {
				return c.writeJSON(defs)
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE\tSCHEDULE\tENGINE")
			for _, d := range defs {
				schedule := d.Schedule
				if schedule == "" {
					schedule = "every " + d.Poller.EvaluationInterval.String()
				}
				fmt.Fprintf(tw, "%s\ts3://%s/%s\t%s\t%s\n", d.ID, d.Source.Bucket, d.Source.Prefix, schedule, d.Emit.Engine)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) cursorCmd() *cobra.Command {
	cursor := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect poller cursors",
	}
	cursor.AddCommand(&cobra.Command{
		Use:   "get <poller>",
		Short: "Print the committed cursor of a poller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			p, err := a.Poller(args[0])
			if err != nil {
				return err
			}
			ts, ok, err := p.Cursor(cmd.Context())
			if err != nil {
				return err
			}

			view := cursorView{Poller: args[0], Committed: ok}
			if ok {
				view.Cursor = &ts
			}
			if c.output == "json" {
				return c.writeJSON(view)
			}
			if !ok {
				fmt.Fprintf(c.out, "%s: no cursor committed\n", args[0])
				return nil
			}
			fmt.Fprintf(c.out, "%s: %s\n", args[0], ts.Format(time.RFC3339Nano))
			return nil
		},
	})
	return cursor
}

func (c *cli) windowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "window <poller>",
		Short: "Print the window the next tick of a poller would scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := c.evaluationTime()
			if err != nil {
				return err
			}

			a, err := c.build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			p, err := a.Poller(args[0])
			if err != nil {
				return err
			}
			w, err := p.NextWindow(cmd.Context(), now)
			if err != nil {
				return err
			}

			if c.output == "json" {
				return c.writeJSON(newWindowView(w))
			}
			fmt.Fprintf(c.out, "%s: %s (%s)\n", args[0], w, w.Duration())
			return nil
		},
	}
}

func (c *cli) tickCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "tick <poller>",
		Short: "Run one tick of a poller now and print the result",
		Long: `Runs a single tick outside the daemon's schedule. The tick commits the
cursor like a scheduled tick. With --dry-run triggers go to an in-memory
engine instead of the configured one and the committed cursor is left
unchanged; the printed cursor is the one the tick would have committed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := c.evaluationTime()
			if err != nil {
				return err
			}

			a, err := c.build(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.Host.EvaluateTick(cmd.Context(), args[0], now)
			if c.output == "json" {
				if jsonErr := c.writeJSON(newTickView(res, err)); jsonErr != nil {
					return jsonErr
				}
				return err
			}

			fmt.Fprintf(c.out, "poller:     %s\n", res.PollerID)
			fmt.Fprintf(c.out, "status:     %s\n", res.Status)
			fmt.Fprintf(c.out, "window:     %s\n", res.Window)
			fmt.Fprintf(c.out, "discovered: %d\n", res.Discovered)
			fmt.Fprintf(c.out, "emitted:    %d (%d duplicates)\n", res.Emitted, res.Duplicates)
			fmt.Fprintf(c.out, "failed:     %d\n", res.Failed)
			if res.Status == poller.StatusCommitted {
				fmt.Fprintf(c.out, "cursor:     %s\n", res.Cursor.Format(time.RFC3339Nano))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "submit triggers to an in-memory engine")
	return cmd
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func (c *cli) definitions() (app.Config, []host.Definition, error) {
	var cfg app.Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, nil, err
	}
	if c.pollersFile != "" {
		cfg.PollersFile = c.pollersFile
	}

	defs, err := host.LoadDefinitions(cfg.PollersFile, cfg.Defaults())
	if err != nil {
		return cfg, nil, err
	}
	return cfg, defs, nil
}

// build wires the app. readOnly replaces every engine with an in-memory one
// and keeps cursor commits out of the configured store, so read-only commands
// and dry runs never touch durable state or the downstream system.
func (c *cli) build(ctx context.Context, readOnly bool) (*app.App, error) {
	cfg, defs, err := c.definitions()
	if err != nil {
		return nil, err
	}

	opts := []app.Option{app.WithLogger(c.logger())}
	if readOnly {
		opts = append(opts,
			app.WithReadOnlyStore(),
			app.WithEngine(func(string) trigger.Engine {
				return trigger.NewMemoryEngine(0)
			}),
		)
	}
	opts = append(opts, c.extra...)

	return app.Build(ctx, cfg, defs, opts...)
}

func (c *cli) evaluationTime() (time.Time, error) {
	if c.at == "" {
		return c.now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, c.at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t.UTC(), nil
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type cursorView struct {
	Poller    string     `json:"poller"`
	Committed bool       `json:"committed"`
	Cursor    *time.Time `json:"cursor,omitempty"`
}

type windowView struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration string    `json:"duration"`
}

func newWindowView(w window.Window) windowView {
	return windowView{Start: w.Start, End: w.End, Duration: w.Duration().String()}
}

type tickView struct {
	Poller     string     `json:"poller"`
	Status     string     `json:"status"`
	Window     windowView `json:"window"`
	Discovered int        `json:"discovered"`
	Emitted    int        `json:"emitted"`
	Duplicates int        `json:"duplicates"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Reobserved int        `json:"reobserved"`
	Cursor     *time.Time `json:"cursor,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

func newTickView(res poller.TickResult, err error) tickView {
	v := tickView{
		Poller:     res.PollerID,
		Status:     string(res.Status),
		Window:     newWindowView(res.Window),
		Discovered: res.Discovered,
		Emitted:    res.Emitted,
		Duplicates: res.Duplicates,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		Reobserved: res.Reobserved,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Status == poller.StatusCommitted {
		v.Cursor = &res.Cursor
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}
