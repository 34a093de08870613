package cursor

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newItemTableDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func putItem(t *testing.T, db *sql.DB, key string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal %s: %v", key, err)
	}
	if _, err := db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, key, string(raw)); err != nil {
		t.Fatalf("insert %s: %v", key, err)
	}
}

// TestCapture_PrefersLiveBubbleRowsOverManifestConversation exercises
// the fallback chain's first link: when bubbleId rows exist for a
// composer, they win over an embedded manifest conversation even when
// both are present, because bubble rows reflect live edits the
// manifest snapshot may not.
func TestCapture_PrefersLiveBubbleRowsOverManifestConversation(t *testing.T) {
	dir := t.TempDir()
	wsDir := filepath.Join(dir, "workspaceStorage", "abc123")
	if err := os.MkdirAll(wsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dbPath := filepath.Join(wsDir, "state.vscdb")
	db := newItemTableDB(t, dbPath)

	putItem(t, db, "composer.composerData", composerDataWrapper{
		AllComposers: []composerManifest{
			{
				ComposerID: "comp-1",
				CreatedAt:  1000,
				Conversation: []bubbleData{
					{Type: 1, Text: "stale manifest question"},
				},
			},
		},
	})
	putItem(t, db, "bubbleId:comp-1:0001", bubbleData{Type: 1, Text: "live question"})
	putItem(t, db, "bubbleId:comp-1:0002", bubbleData{Type: 2, Text: "live answer"})
	db.Close()

	a := &Adapter{
		workspaceStorageDir: filepath.Join(dir, "workspaceStorage"),
		globalDBPath:        filepath.Join(dir, "globalStorage", "state.vscdb"),
		manifestCache:       make(map[uint64][]composerManifest),
	}

	session, err := a.Capture(context.Background(), "abc123:comp-1")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if got := session.Conversation.MessageCount; got != 2 {
		t.Fatalf("MessageCount = %d, want 2", got)
	}
	if session.Conversation.Messages[0].Content != "live question" {
		t.Fatalf("Messages[0].Content = %q, want bubble row content, not manifest snapshot", session.Conversation.Messages[0].Content)
	}
}

// TestCapture_FallsBackToManifestConversationWhenNoBubbleRows covers
// the second fallback link for older captures that embed the
// conversation directly in the manifest instead of separate rows.
func TestCapture_FallsBackToManifestConversationWhenNoBubbleRows(t *testing.T) {
	dir := t.TempDir()
	wsDir := filepath.Join(dir, "workspaceStorage", "abc123")
	if err := os.MkdirAll(wsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dbPath := filepath.Join(wsDir, "state.vscdb")
	db := newItemTableDB(t, dbPath)
	putItem(t, db, "composer.composerData", composerDataWrapper{
		AllComposers: []composerManifest{
			{
				ComposerID: "comp-2",
				CreatedAt:  1000,
				Conversation: []bubbleData{
					{Type: 1, Text: "only in manifest"},
				},
			},
		},
	})
	db.Close()

	a := &Adapter{
		workspaceStorageDir: filepath.Join(dir, "workspaceStorage"),
		globalDBPath:        filepath.Join(dir, "globalStorage", "state.vscdb"),
		manifestCache:       make(map[uint64][]composerManifest),
	}

	session, err := a.Capture(context.Background(), "abc123:comp-2")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if got := session.Conversation.MessageCount; got != 1 {
		t.Fatalf("MessageCount = %d, want 1", got)
	}
	if session.Conversation.Messages[0].Content != "only in manifest" {
		t.Fatalf("Content = %q, want manifest-embedded text", session.Conversation.Messages[0].Content)
	}
}

// TestCapture_UnknownComposerIsNotFound ensures a composer id absent
// from every manifest source surfaces adapter.ErrNotFound rather than
// an empty, seemingly-valid session.
func TestCapture_UnknownComposerIsNotFound(t *testing.T) {
	dir := t.TempDir()
	wsDir := filepath.Join(dir, "workspaceStorage", "abc123")
	if err := os.MkdirAll(wsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	db := newItemTableDB(t, filepath.Join(wsDir, "state.vscdb"))
	db.Close()

	a := &Adapter{
		workspaceStorageDir: filepath.Join(dir, "workspaceStorage"),
		globalDBPath:        filepath.Join(dir, "globalStorage", "state.vscdb"),
		manifestCache:       make(map[uint64][]composerManifest),
	}

	if _, err := a.Capture(context.Background(), "abc123:nope"); err == nil {
		t.Fatal("expected an error for an unknown composer id")
	}
}

