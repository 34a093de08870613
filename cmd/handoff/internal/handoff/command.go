// Package handoff implements "handoff handoff": capture, enrich,
// compress, build the resume prompt, and write .handoff/RESUME.md.
package handoff

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/cliexit"
	"github.com/Kushalwho/handoff/internal/compress"
	capturecmd "github.com/Kushalwho/handoff/cmd/handoff/internal/capture"
	"github.com/Kushalwho/handoff/internal/promptbuilder"
	"github.com/Kushalwho/handoff/internal/store"
)

// NewCommand builds the "handoff" subcommand.
func NewCommand() *cobra.Command {
	var source string
	var sessionID string
	var projectPath string
	var targetAgent string
	var targetTokens int

	cmd := &cobra.Command{
		Use:     "handoff",
		Short:   "Capture, compress, and write a resume prompt to .handoff/RESUME.md",
		Example: "handoff handoff --source claude-code --target-agent cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, source, sessionID, projectPath, targetAgent, targetTokens)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source id to capture from (required)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default: most recent)")
	cmd.Flags().StringVar(&projectPath, "project", "", "project path (default: current directory)")
	cmd.Flags().StringVar(&targetAgent, "target-agent", "", "target agent id to size the prompt for")
	cmd.Flags().IntVar(&targetTokens, "target-tokens", 0, "explicit token budget, overrides --target-agent")
	return cmd
}

func run(cmd *cobra.Command, source, sessionID, projectPath, targetAgent string, targetTokens int) error {
	if source == "" {
		cmd.SilenceUsage = true
		return cliexit.New(cliexit.NoAgents, fmt.Errorf("--source is required"))
	}

	session, err := capturecmd.Run(cmd.Context(), source, sessionID, projectPath)
	if err != nil {
		cmd.SilenceUsage = true
		return err
	}

	result := compress.Compress(session, compress.Options{TargetTokens: targetTokens, TargetAgent: targetAgent})
	doc := promptbuilder.Build(session, result, promptbuilder.Options{TargetAgent: targetAgent})

	if err := store.SaveResume(session.Project.Path, doc); err != nil {
		cmd.SilenceUsage = true
		return cliexit.New(cliexit.CaptureFailed, fmt.Errorf("write resume document: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote .handoff/RESUME.md (%d tokens, %d layers included, %d dropped)\n",
		result.TotalTokens, len(result.IncludedLayers), len(result.DroppedLayers))
	return nil
}
