package codex

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
// §8's empty-session boundary for Codex specifically: with no
// session_meta record at all, cwd never gets set, and Project.Path
// must still resolve to an absolute path via os.Getwd() rather than
// failing canonical.Validate's I6 invariant.
func TestCapture_EmptySessionFileFallsBackToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-empty.jsonl")
	writeJSONL(t, path, nil)

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "rollout-empty")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 0 {
		t.Fatalf("MessageCount = %d, want 0", session.Conversation.MessageCount)
	}
	if session.Project.Path == "" {
		t.Fatal("Project.Path is empty, want os.Getwd() fallback")
	}
	wd, _ := os.Getwd()
	if session.Project.Path != wd {
		t.Fatalf("Project.Path = %q, want working directory %q", session.Project.Path, wd)
	}
}

// TestCapture_OnlySystemRoleMessagesIsValid covers the only-system-role
// boundary: every response_item is a "message" with role "system",
// with no user/assistant turns, and must still produce a valid session.
func TestCapture_OnlySystemRoleMessagesIsValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-system.jsonl")
	writeJSONL(t, path, []string{
		`{"type":"session_meta","timestamp":"2024-01-01T00:00:00Z","payload":{"id":"rollout-system","cwd":"/tmp/proj"}}`,
		`{"type":"response_item","timestamp":"2024-01-01T00:00:01Z","payload":{"type":"message","role":"system","content":"you are a coding agent"}}`,
	})

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "rollout-system")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 1 {
		t.Fatalf("MessageCount = %d, want 1", session.Conversation.MessageCount)
	}
	if session.Conversation.Messages[0].Role != "system" {
		t.Fatalf("Messages[0].Role = %q, want system", session.Conversation.Messages[0].Role)
	}
}

// TestCapture_DuplicateCallIDsKeepFirstOccurrence covers the
// duplicate-message-id boundary for Codex's function_call stream,
// keyed on call_id rather than a generic message id.
func TestCapture_DuplicateCallIDsKeepFirstOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-dup.jsonl")
	writeJSONL(t, path, []string{
		`{"type":"session_meta","timestamp":"2024-01-01T00:00:00Z","payload":{"id":"rollout-dup","cwd":"/tmp/proj"}}`,
		`{"type":"response_item","timestamp":"2024-01-01T00:00:01Z","payload":{"type":"function_call","name":"shell","call_id":"c1","arguments":"{\"command\":\"ls\"}"}}`,
		`{"type":"response_item","timestamp":"2024-01-01T00:00:02Z","payload":{"type":"function_call","name":"shell","call_id":"c1","arguments":"{\"command\":\"ls -la\"}"}}`,
	})

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "rollout-dup")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 1 {
		t.Fatalf("MessageCount = %d, want 1 (duplicate call_id collapsed)", session.Conversation.MessageCount)
	}
}

// TestCapture_TolerantOfMalformedLines covers malformed-line tolerance:
// a line that isn't valid JSON at all must be skipped, not abort capture.
func TestCapture_TolerantOfMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-malformed.jsonl")
	writeJSONL(t, path, []string{
		`{"type":"session_meta","timestamp":"2024-01-01T00:00:00Z","payload":{"id":"rollout-malformed","cwd":"/tmp/proj"}}`,
		`{totally not json`,
		`{"type":"response_item","timestamp":"2024-01-01T00:00:01Z","payload":{"type":"message","role":"user","content":"hello"}}`,
	})

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "rollout-malformed")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 1 {
		t.Fatalf("MessageCount = %d, want 1 (malformed line skipped)", session.Conversation.MessageCount)
	}
}

// TestCapture_LongStreamIsFullyScanned covers the 1002-line boundary
// for Codex's rollout scanner buffer.
func TestCapture_LongStreamIsFullyScanned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-long.jsonl")

	lines := []string{`{"type":"session_meta","timestamp":"2024-01-01T00:00:00Z","payload":{"id":"rollout-long","cwd":"/tmp/proj"}}`}
	for i := 0; i < 1002; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		lines = append(lines, fmt.Sprintf(
			`{"type":"response_item","timestamp":"2024-01-01T00:00:00Z","payload":{"type":"message","role":%q,"content":"message %d"}}`,
			role, i,
		))
	}
	writeJSONL(t, path, lines)

	a := &Adapter{sessionsDir: dir}
	session, err := a.Capture(context.Background(), "rollout-long")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if session.Conversation.MessageCount != 1002 {
		t.Fatalf("MessageCount = %d, want 1002", session.Conversation.MessageCount)
	}
}
