// Package detect implements "handoff detect": print each registered
// source with a found/not-found mark and its storage path.
package detect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/adapters"
	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/cliexit"
)

// NewCommand builds the "detect" subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "detect",
		Short:   "Print each registered source with a found/not-found mark and storage path",
		Example: "handoff detect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}
	return cmd
}

func run(cmd *cobra.Command) error {
	found := 0
	for _, entry := range registry.Entries {
		a, ok := adapters.Lookup(entry.ID)
		mark := "✗"
		if ok && a.Detect() {
			mark = "✓"
			found++
		}
		path := entry.StorageRoot()
		if path == "" {
			path = "(no storage on this host)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-14s %s\n", mark, entry.DisplayName, path)
	}
	if found == 0 {
		cmd.SilenceUsage = true
		return cliexit.New(cliexit.NoAgents, fmt.Errorf("no agents detected"))
	}
	return nil
}
