package store

import (
	"testing"
	"time"

	"github.com/Kushalwho/handoff/internal/canonical"
)

func TestSaveLoadSession_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	original := &canonical.CanonicalSession{
		SchemaVersion: canonical.SchemaVersion,
		Source:        canonical.SourceClaudeCode,
		CapturedAt:    time.Now().UTC().Truncate(time.Second),
		SessionID:     "sess-1",
		Project:       canonical.ProjectContext{Path: dir},
		Task:          canonical.TaskState{Description: "Build the widget"},
		Conversation: canonical.Conversation{
			MessageCount: 1,
			Messages: []canonical.ConversationMessage{
				{Role: canonical.RoleUser, Content: "please build the widget"},
			},
		},
	}

	if err := SaveSession(dir, original); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	loaded, err := LoadSession(dir)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}

	if loaded.SessionID != original.SessionID {
		t.Fatalf("SessionID = %q, want %q", loaded.SessionID, original.SessionID)
	}
	if loaded.Task.Description != original.Task.Description {
		t.Fatalf("Task.Description = %q, want %q", loaded.Task.Description, original.Task.Description)
	}
	if len(loaded.Conversation.Messages) != len(original.Conversation.Messages) {
		t.Fatalf("message count = %d, want %d", len(loaded.Conversation.Messages), len(original.Conversation.Messages))
	}
}

func TestLoadSession_MissingFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadSession(dir); err == nil {
		t.Fatal("expected an error loading a session that was never saved")
	}
}

func TestSaveResume_WritesMarkdownFile(t *testing.T) {
	dir := t.TempDir()
	if err := SaveResume(dir, "# Session Handoff\n"); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}
}
