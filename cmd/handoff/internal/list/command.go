// Package list implements "handoff list": enumerate recent sessions,
// optionally filtered by source.
package list

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapters"
	"github.com/Kushalwho/handoff/internal/canonical"
	"github.com/Kushalwho/handoff/internal/cliexit"
)

const defaultLimit = 10

// NewCommand builds the "list" subcommand.
func NewCommand() *cobra.Command {
	var source string
	var projectPath string
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recent sessions, optionally filtered by source",
		Example: "handoff list --source claude-code --limit 5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, source, projectPath, limit)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "filter by source id (e.g. claude-code)")
	cmd.Flags().StringVar(&projectPath, "project", "", "filter by project path (default: all projects)")
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum sessions to print")
	return cmd
}

func run(cmd *cobra.Command, source, projectPath string, limit int) error {
	var targets []adapter.Adapter
	if source != "" {
		a, ok := adapters.Lookup(canonical.Source(source))
		if !ok {
			cmd.SilenceUsage = true
			return cliexit.New(cliexit.NoAgents, fmt.Errorf("unknown source %q", source))
		}
		targets = []adapter.Adapter{a}
	} else {
		targets = adapters.Detected()
		if len(targets) == 0 {
			cmd.SilenceUsage = true
			return cliexit.New(cliexit.NoAgents, fmt.Errorf("no agents detected"))
		}
	}

	var all []canonical.SessionInfo
	ctx := context.Background()
	for _, a := range targets {
		sessions, err := a.ListSessions(ctx, projectPath)
		if err != nil {
			cmd.SilenceUsage = true
			return cliexit.New(cliexit.EnumerationFailed, fmt.Errorf("list sessions for %s: %w", a.ID(), err))
		}
		all = append(all, sessions...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		ti, tj := all[i].LastActiveAt, all[j].LastActiveAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	for _, s := range all {
		fmt.Fprintf(cmd.OutOrStdout(), "%-36s %4d msgs  %s\n", s.ID, s.MessageCount, s.Preview)
	}
	return nil
}
