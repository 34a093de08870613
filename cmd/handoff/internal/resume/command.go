// Package resume implements "handoff resume": reload a persisted
// CanonicalSession, recompress for a (possibly different) target, and
// rewrite .handoff/RESUME.md.
package resume

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/cliexit"
	"github.com/Kushalwho/handoff/internal/compress"
	"github.com/Kushalwho/handoff/internal/promptbuilder"
	"github.com/Kushalwho/handoff/internal/store"
)

// NewCommand builds the "resume" subcommand.
func NewCommand() *cobra.Command {
	var projectPath string
	var targetAgent string
	var targetTokens int

	cmd := &cobra.Command{
		Use:     "resume",
		Short:   "Reload a persisted session and rewrite .handoff/RESUME.md for a target agent",
		Example: "handoff resume --target-agent codex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, projectPath, targetAgent, targetTokens)
		},
	}
	cmd.Flags().StringVar(&projectPath, "project", "", "project path (default: current directory)")
	cmd.Flags().StringVar(&targetAgent, "target-agent", "", "target agent id to size the prompt for")
	cmd.Flags().IntVar(&targetTokens, "target-tokens", 0, "explicit token budget, overrides --target-agent")
	return cmd
}

func run(cmd *cobra.Command, projectPath, targetAgent string, targetTokens int) error {
	if projectPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			cmd.SilenceUsage = true
			return cliexit.New(cliexit.CaptureFailed, fmt.Errorf("resolve current directory: %w", err))
		}
		projectPath = wd
	}

	session, err := store.LoadSession(projectPath)
	if err != nil {
		cmd.SilenceUsage = true
		return cliexit.New(cliexit.CaptureFailed, fmt.Errorf("reload persisted session: %w", err))
	}

	result := compress.Compress(session, compress.Options{TargetTokens: targetTokens, TargetAgent: targetAgent})
	doc := promptbuilder.Build(session, result, promptbuilder.Options{TargetAgent: targetAgent})

	if err := store.SaveResume(projectPath, doc); err != nil {
		cmd.SilenceUsage = true
		return cliexit.New(cliexit.CaptureFailed, fmt.Errorf("write resume document: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "rewrote .handoff/RESUME.md (%d tokens, %d layers included, %d dropped)\n",
		result.TotalTokens, len(result.IncludedLayers), len(result.DroppedLayers))
	return nil
}
