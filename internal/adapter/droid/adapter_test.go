package droid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeJSONL(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestCapture_EmptySessionFileFallsBackToWorkingDirectory covers spec
// §8's empty-session boundary: zero lines, no cwd anywhere in the
// stream, so Project.Path must still resolve via os.Getwd().
func TestCapture_EmptySessionFileFallsBackToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-empty.jsonl")
	writeJSONL(t, path, nil)

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "sess-empty")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 0 {
		t.Fatalf("MessageCount = %d, want 0", session.Conversation.MessageCount)
	}
	wd, _ := os.Getwd()
	if session.Project.Path != wd {
		t.Fatalf("Project.Path = %q, want working directory %q", session.Project.Path, wd)
	}
}

// TestCapture_OnlySystemRoleEntriesIsValid covers the only-system-role
// boundary: Droid's flat role field admits "system" directly (unlike
// Claude Code's type-level filter), and every entry here carries it.
func TestCapture_OnlySystemRoleEntriesIsValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-system.jsonl")
	writeJSONL(t, path, []string{
		`{"id":"m1","timestamp":"2024-01-01T00:00:00Z","cwd":"/tmp/proj","role":"system","content":"you are a coding agent"}`,
		`{"id":"m2","timestamp":"2024-01-01T00:00:01Z","role":"system","content":"additional instructions"}`,
	})

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "sess-system")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", session.Conversation.MessageCount)
	}
	for i, m := range session.Conversation.Messages {
		if m.Role != "system" {
			t.Fatalf("Messages[%d].Role = %q, want system", i, m.Role)
		}
	}
}

// TestCapture_DuplicateIDsKeepFirstOccurrence covers the
// duplicate-message-id boundary.
func TestCapture_DuplicateIDsKeepFirstOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-dup.jsonl")
	writeJSONL(t, path, []string{
		`{"id":"m1","timestamp":"2024-01-01T00:00:00Z","cwd":"/tmp/proj","role":"user","content":"hello"}`,
		`{"id":"m1","timestamp":"2024-01-01T00:00:05Z","role":"user","content":"hello again"}`,
		`{"id":"m2","timestamp":"2024-01-01T00:00:06Z","role":"assistant","content":"hi"}`,
	})

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "sess-dup")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2 (duplicate id collapsed)", session.Conversation.MessageCount)
	}
	if session.Conversation.Messages[0].Content != "hello" {
		t.Fatalf("Messages[0].Content = %q, want first occurrence kept", session.Conversation.Messages[0].Content)
	}
}

// TestCapture_TolerantOfMalformedLines covers malformed-line tolerance.
func TestCapture_TolerantOfMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-malformed.jsonl")
	writeJSONL(t, path, []string{
		`{"id":"m1","timestamp":"2024-01-01T00:00:00Z","cwd":"/tmp/proj","role":"user","content":"hello"}`,
		`<<not json at all>>`,
		`{"id":"m2","timestamp":"2024-01-01T00:00:01Z","role":"assistant","content":"hi"}`,
	})

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "sess-malformed")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2 (malformed line skipped)", session.Conversation.MessageCount)
	}
}

// TestCapture_LongStreamIsFullyScanned covers the 1002-line boundary.
func TestCapture_LongStreamIsFullyScanned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-long.jsonl")

	var lines []string
	for i := 0; i < 1002; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		cwd := ""
		if i == 0 {
			cwd = `,"cwd":"/tmp/proj"`
		}
		lines = append(lines, fmt.Sprintf(
			`{"id":"m%d","timestamp":"2024-01-01T00:00:00Z"%s,"role":%q,"content":"message %d"}`,
			i, cwd, role, i,
		))
	}
	writeJSONL(t, path, lines)

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "sess-long")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 1002 {
		t.Fatalf("MessageCount = %d, want 1002", session.Conversation.MessageCount)
	}
}
