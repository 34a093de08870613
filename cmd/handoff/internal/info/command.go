// Package info implements "handoff info": print the adapter registry.
package info

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/adapter/registry"
)

// NewCommand builds the "info" subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "info",
		Short:   "Print the adapter registry: name, storage path, context window, usable budget, memory files",
		Example: "handoff info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, e := range registry.Entries {
				path := e.StorageRoot()
				if path == "" {
					path = "(no storage on this host)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", e.DisplayName, e.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "  storage:         %s\n", path)
				fmt.Fprintf(cmd.OutOrStdout(), "  context window:  %d tokens\n", e.ContextWindow)
				fmt.Fprintf(cmd.OutOrStdout(), "  usable budget:   %d tokens\n", e.UsableBudget)
				fmt.Fprintf(cmd.OutOrStdout(), "  memory files:    %s\n", strings.Join(e.MemoryFiles, ", "))
			}
			return nil
		},
	}
	return cmd
}
