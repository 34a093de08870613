// Package render turns a finished handoff document into terminal
// output or the system clipboard, the same rendering libraries the
// teacher's TUI panels use (lipgloss for styling, glamour for
// Markdown, atotto/clipboard for the system clipboard) repurposed for
// one-shot CLI output instead of an interactive view.
package render

import (
	"bytes"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// defaultWrapWidth is used when stdout isn't a terminal (piped output,
// redirected to a file) and there's no column count to query.
const defaultWrapWidth = 100

// terminalWidth returns stdout's current column count, falling back to
// defaultWrapWidth when stdout isn't a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWrapWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWrapWidth
	}
	return w
}

// Markdown renders a Markdown document for terminal display using
// glamour's auto-detected style (dark/light terminal background),
// word-wrapped to the current terminal width.
// Falls back to the raw document when glamour cannot render it.
func Markdown(doc string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return doc
	}
	out, err := r.Render(doc)
	if err != nil {
		return doc
	}
	return out
}

// Heading styles a one-line section heading for plain (non-Markdown)
// terminal output, e.g. CLI table headers.
func Heading(s string) string { return headingStyle.Render(s) }

// Muted styles secondary, de-emphasized terminal text.
func Muted(s string) string { return mutedStyle.Render(s) }

// CopyToClipboard writes doc to the system clipboard.
func CopyToClipboard(doc string) error {
	return clipboard.WriteAll(doc)
}

// HighlightDiff renders code in language with terminal-256 syntax
// highlighting, for the short per-file previews the capture command
// prints outside the Markdown resume document. Falls back to the
// plain code on an unrecognized language or highlighting failure.
func HighlightDiff(code, language string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, code, language, "terminal256", "monokai"); err != nil {
		return code
	}
	return buf.String()
}
