// Package watch implements "handoff watch": run the polling watcher,
// logging events until interrupted.
package watch

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapters"
	"github.com/Kushalwho/handoff/internal/canonical"
	"github.com/Kushalwho/handoff/internal/watcher"
)

// NewCommand builds the "watch" subcommand.
func NewCommand() *cobra.Command {
	var source string
	var projectPath string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Poll detected agents and log session events until interrupted",
		Example: "handoff watch --interval 15s",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, source, projectPath, interval)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "limit watching to one source id (default: all detected)")
	cmd.Flags().StringVar(&projectPath, "project", "", "limit watching to one project path")
	cmd.Flags().DurationVar(&interval, "interval", watcher.DefaultInterval, "polling cadence")
	return cmd
}

func run(cmd *cobra.Command, source, projectPath string, interval time.Duration) error {
	var agents []adapter.Adapter
	if source != "" {
		a, ok := adapters.Lookup(canonical.Source(source))
		if ok {
			agents = []adapter.Adapter{a}
		}
	} else {
		agents = adapters.Detected()
	}

	w := watcher.New(watcher.Options{
		Agents:      agents,
		Interval:    interval,
		ProjectPath: projectPath,
		OnEvent:     logEvent,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
	return nil
}

func logEvent(ev watcher.Event) {
	switch ev.Type {
	case watcher.EventIdle:
		slog.Debug("watch: idle")
	default:
		slog.Info("watch: event", "type", ev.Type, "source", ev.Source, "session", ev.SessionID, "oldCount", ev.OldCount, "newCount", ev.NewCount)
	}
}
