// Command handoff captures AI coding-assistant sessions and produces
// a compressed resume prompt for handing work off between agents or
// machines.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kushalwho/handoff/cmd/handoff/internal/capture"
	"github.com/Kushalwho/handoff/cmd/handoff/internal/detect"
	"github.com/Kushalwho/handoff/cmd/handoff/internal/handoff"
	"github.com/Kushalwho/handoff/cmd/handoff/internal/info"
	"github.com/Kushalwho/handoff/cmd/handoff/internal/list"
	"github.com/Kushalwho/handoff/cmd/handoff/internal/resume"
	"github.com/Kushalwho/handoff/cmd/handoff/internal/watch"
	"github.com/Kushalwho/handoff/internal/cliexit"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "handoff",
		Short:         "Capture and hand off AI coding-assistant sessions between agents",
		Example:       "handoff detect",
		SilenceErrors: true,
	}

	cmd.AddCommand(
		detect.NewCommand(),
		list.NewCommand(),
		capture.NewCommand(),
		handoff.NewCommand(),
		resume.NewCommand(),
		watch.NewCommand(),
		info.NewCommand(),
	)

	return cmd
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "handoff:", err)
		os.Exit(cliexit.CodeOf(err))
	}
}
