// Package capture implements "handoff capture": produce a
// CanonicalSession and persist it to .handoff/session.json.
package capture

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/internal/adapters"
	"github.com/Kushalwho/handoff/internal/canonical"
	"github.com/Kushalwho/handoff/internal/cliexit"
	"github.com/Kushalwho/handoff/internal/enrichment"
	"github.com/Kushalwho/handoff/internal/render"
	"github.com/Kushalwho/handoff/internal/store"
)

// maxDiffPreviews caps how many changed-file diffs get a highlighted
// terminal preview after a capture.
const maxDiffPreviews = 3

// NewCommand builds the "capture" subcommand.
func NewCommand() *cobra.Command {
	var source string
	var sessionID string
	var projectPath string

	cmd := &cobra.Command{
		Use:     "capture",
		Short:   "Capture a session and persist it to .handoff/session.json",
		Example: "handoff capture --source claude-code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, source, sessionID, projectPath)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source id to capture from (required)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default: most recent)")
	cmd.Flags().StringVar(&projectPath, "project", "", "project path (default: current directory)")
	return cmd
}

// Run performs a capture and returns the persisted session, for reuse
// by the handoff command.
func Run(ctx context.Context, source, sessionID, projectPath string) (*canonical.CanonicalSession, error) {
	a, ok := adapters.Lookup(canonical.Source(source))
	if !ok {
		return nil, cliexit.New(cliexit.NoAgents, fmt.Errorf("unknown source %q", source))
	}

	if projectPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, cliexit.New(cliexit.CaptureFailed, fmt.Errorf("resolve current directory: %w", err))
		}
		projectPath = wd
	}

	var session *canonical.CanonicalSession
	var err error
	if sessionID != "" {
		session, err = a.Capture(ctx, sessionID)
	} else {
		session, err = a.CaptureLatest(ctx, projectPath)
	}
	if err != nil {
		return nil, cliexit.New(cliexit.CaptureFailed, fmt.Errorf("capture %s session: %w", source, err))
	}

	session.Project = enrichment.Enrich(session.Project.Path, a.ID())

	if err := store.SaveSession(projectPath, session); err != nil {
		return nil, cliexit.New(cliexit.CaptureFailed, fmt.Errorf("persist session: %w", err))
	}
	return session, nil
}

func run(cmd *cobra.Command, source, sessionID, projectPath string) error {
	if source == "" {
		cmd.SilenceUsage = true
		return cliexit.New(cliexit.NoAgents, fmt.Errorf("--source is required"))
	}
	session, err := Run(cmd.Context(), source, sessionID, projectPath)
	if err != nil {
		cmd.SilenceUsage = true
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "captured %s (%d messages) -> .handoff/session.json\n", session.SessionID, session.Conversation.MessageCount)
	printDiffPreviews(cmd, session)
	return nil
}

func printDiffPreviews(cmd *cobra.Command, session *canonical.CanonicalSession) {
	shown := 0
	for _, f := range session.FilesChanged {
		if f.Diff == "" || shown >= maxDiffPreviews {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", f.Path, f.ChangeType)
		fmt.Fprint(cmd.OutOrStdout(), render.HighlightDiff(f.Diff, f.Language))
		shown++
	}
}
