package claudecode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kushalwho/handoff/internal/pathhash"
)

// newTestAdapter lays out a single project's transcript directory
// using the real dash-encoding scheme, so resolveProjectPath's
// directory-name fallback behaves exactly as it would in production.
func newTestAdapter(t *testing.T, projectAbsPath string) (*Adapter, string) {
	t.Helper()
	projectsDir := t.TempDir()
	dirName := pathhash.EncodeClaudeCode(projectAbsPath, false)
	projDir := filepath.Join(projectsDir, dirName)
	if err := os.MkdirAll(projDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return &Adapter{projectsDir: projectsDir}, projDir
}

func writeJSONL(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestCapture_EmptySessionFileIsValidWithFallbackPath covers spec §8's
// empty-session boundary: zero transcript lines must still produce a
// schema-valid session (zero messages) with project.path falling back
// through the directory-name decode rather than landing empty.
func TestCapture_EmptySessionFileIsValidWithFallbackPath(t *testing.T) {
	a, projDir := newTestAdapter(t, "/Users/alice/myproject")
	path := filepath.Join(projDir, "sess-empty.jsonl")
	writeJSONL(t, path, nil)

	session, err := a.Capture(context.Background(), "sess-empty")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 0 {
		t.Fatalf("MessageCount = %d, want 0", session.Conversation.MessageCount)
	}
	if session.Project.Path != "/Users/alice/myproject" {
		t.Fatalf("Project.Path = %q, want decoded project path", session.Project.Path)
	}
}

// TestCapture_OnlySystemTypeEntriesYieldsEmptyButValidSession covers
// the only-system-role boundary: Claude Code's top-level record type
// only admits "user"/"assistant"; a transcript of exclusively
// "system"-typed records must be skipped entirely, not misparsed.
func TestCapture_OnlySystemTypeEntriesYieldsEmptyButValidSession(t *testing.T) {
	a, projDir := newTestAdapter(t, "/Users/alice/myproject")
	path := filepath.Join(projDir, "sess-system.jsonl")
	writeJSONL(t, path, []string{
		`{"type":"system","uuid":"s1","timestamp":"2024-01-01T00:00:00Z","message":{"role":"system","content":"session started"}}`,
		`{"type":"summary","uuid":"s2","timestamp":"2024-01-01T00:00:01Z"}`,
	})

	session, err := a.Capture(context.Background(), "sess-system")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 0 {
		t.Fatalf("MessageCount = %d, want 0 (system/summary records excluded)", session.Conversation.MessageCount)
	}
}

// TestCapture_DuplicateUUIDsKeepFirstOccurrence covers the
// duplicate-message-id boundary: a repeated uuid (e.g. from a resumed
// or replayed write) must not double-count the message.
func TestCapture_DuplicateUUIDsKeepFirstOccurrence(t *testing.T) {
	a, projDir := newTestAdapter(t, "/Users/alice/myproject")
	path := filepath.Join(projDir, "sess-dup.jsonl")
	writeJSONL(t, path, []string{
		`{"type":"user","uuid":"m1","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"hello"}}`,
		`{"type":"user","uuid":"m1","timestamp":"2024-01-01T00:00:05Z","message":{"role":"user","content":"hello again"}}`,
		`{"type":"assistant","uuid":"m2","timestamp":"2024-01-01T00:00:06Z","message":{"role":"assistant","content":"hi"}}`,
	})

	session, err := a.Capture(context.Background(), "sess-dup")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2 (duplicate uuid collapsed)", session.Conversation.MessageCount)
	}
	if session.Conversation.Messages[0].Content != "hello" {
		t.Fatalf("Messages[0].Content = %q, want first occurrence kept", session.Conversation.Messages[0].Content)
	}
}

// TestCapture_TolerantOfMalformedLines covers malformed-line tolerance:
// an unparseable line interspersed in an otherwise valid transcript
// must be skipped rather than aborting the whole capture.
func TestCapture_TolerantOfMalformedLines(t *testing.T) {
	a, projDir := newTestAdapter(t, "/Users/alice/myproject")
	path := filepath.Join(projDir, "sess-malformed.jsonl")
	writeJSONL(t, path, []string{
		`{"type":"user","uuid":"m1","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"hello"}}`,
		`not even json {{{`,
		`{"type":"assistant","uuid":"m2","timestamp":"2024-01-01T00:00:01Z","message":{"role":"assistant","content":"hi"}}`,
	})

	session, err := a.Capture(context.Background(), "sess-malformed")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2 (malformed line skipped)", session.Conversation.MessageCount)
	}
}

// TestCapture_LongStreamIsFullyScanned covers the 1002-line boundary:
// the scanner's enlarged buffer must not truncate or choke on a
// transcript well past the bufio.Scanner default token size.
func TestCapture_LongStreamIsFullyScanned(t *testing.T) {
	a, projDir := newTestAdapter(t, "/Users/alice/myproject")
	path := filepath.Join(projDir, "sess-long.jsonl")

	var lines []string
	for i := 0; i < 1002; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		lines = append(lines, fmt.Sprintf(
			`{"type":%q,"uuid":"m%d","timestamp":"2024-01-01T00:00:00Z","message":{"role":%q,"content":"message %d"}}`,
			role, i, role, i,
		))
	}
	writeJSONL(t, path, lines)

	session, err := a.Capture(context.Background(), "sess-long")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 1002 {
		t.Fatalf("MessageCount = %d, want 1002", session.Conversation.MessageCount)
	}
}
