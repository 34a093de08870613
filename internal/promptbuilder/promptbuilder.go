// Package promptbuilder assembles a compressed session and its
// enrichment into the final Markdown handoff document. Pure string
// assembly, no I/O.
package promptbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/canonical"
	"github.com/Kushalwho/handoff/internal/compress"
)

// Options controls the target-specific footer.
type Options struct {
	TargetAgent string
}

const instructions = `1. Read the task state and decisions below before making any changes.
2. Resume from the "in progress" item, or the first "remaining" item if none.
3. Do not re-ask questions already answered in decisions or blockers.
4. Check active files against the current working tree before editing.
5. Treat blockers as still-open unless the task state says otherwise.
6. Continue in the same project and branch noted below.`

// Build produces the final Markdown handoff document.
func Build(s *canonical.CanonicalSession, compressed compress.Result, opts Options) string {
	var b strings.Builder

	writeHeader(&b, s, opts)
	b.WriteString("\n## Instructions for resuming agent\n\n")
	b.WriteString(instructions)
	b.WriteString("\n\n")
	writeTaskBlock(&b, s.Task)
	b.WriteString("\n")
	b.WriteString(compressed.Content)
	b.WriteString("\n\n**Resume now.**\n")

	if footer := targetFooter(opts.TargetAgent); footer != "" {
		b.WriteString("\n")
		b.WriteString(footer)
		b.WriteString("\n")
	}

	return b.String()
}

func writeHeader(b *strings.Builder, s *canonical.CanonicalSession, opts Options) {
	b.WriteString("# Session Handoff\n\n")
	fmt.Fprintf(b, "- Source: %s\n", sourceDisplayName(s.Source))
	fmt.Fprintf(b, "- Captured: %s\n", s.CapturedAt.Format(time.RFC3339))
	fmt.Fprintf(b, "- Project: %s\n", s.Project.Path)
	if s.Project.GitBranch != "" {
		fmt.Fprintf(b, "- Branch: %s\n", s.Project.GitBranch)
	}
	if opts.TargetAgent != "" {
		fmt.Fprintf(b, "- Target: %s\n", targetDisplayName(opts.TargetAgent))
	}
}

func writeTaskBlock(b *strings.Builder, t canonical.TaskState) {
	b.WriteString("## Current task\n\n")
	if t.Description != "" {
		fmt.Fprintf(b, "**Goal**: %s\n\n", t.Description)
	}
	if len(t.Completed) > 0 {
		b.WriteString("**Completed**:\n")
		for _, c := range t.Completed {
			fmt.Fprintf(b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	if t.InProgress != "" {
		fmt.Fprintf(b, "**In progress**: %s\n\n", t.InProgress)
	}
	if len(t.Remaining) > 0 {
		b.WriteString("**Remaining**:\n")
		for _, r := range t.Remaining {
			fmt.Fprintf(b, "- %s\n", r)
		}
	}
}

func sourceDisplayName(src canonical.Source) string {
	if e, ok := registry.Lookup(src); ok {
		return e.DisplayName
	}
	return string(src)
}

func targetDisplayName(target string) string {
	if e, ok := registry.Lookup(canonical.Source(target)); ok {
		return e.DisplayName
	}
	return target
}

func targetFooter(target string) string {
	switch target {
	case "", "clipboard":
		return "Paste this into your coding assistant to resume."
	case "file":
		return ""
	default:
		if e, ok := registry.Lookup(canonical.Source(target)); ok {
			return fmt.Sprintf("Paste this into %s to resume.", e.DisplayName)
		}
		return ""
	}
}
