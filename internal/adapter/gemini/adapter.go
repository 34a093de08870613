// Package gemini implements the adapter.Adapter contract for Gemini
// CLI, whose sessions are whole-file JSON documents under a
// sha256-hashed per-project directory:
// ~/.gemini/tmp/<sha256(absPath)>/chats/session-*.json.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/analyzer"
	"github.com/Kushalwho/handoff/internal/canonical"
	"github.com/Kushalwho/handoff/internal/pathhash"
)

// Adapter implements adapter.Adapter for Gemini CLI.
type Adapter struct {
	tmpDir string
}

// New creates a Gemini adapter rooted at the registry's storage path.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceGemini)
	root := entry.StorageRoot()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".gemini", "tmp")
	}
	return &Adapter{tmpDir: root}
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceGemini }

func (a *Adapter) Detect() bool {
	entries, err := os.ReadDir(a.tmpDir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

func (a *Adapter) chatsDirs(projectPath string) []string {
	if projectPath != "" {
		hash := pathhash.HashSHA256Hex(projectPath)
		return []string{filepath.Join(a.tmpDir, hash, "chats")}
	}
	entries, err := os.ReadDir(a.tmpDir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(a.tmpDir, e.Name(), "chats"))
		}
	}
	return dirs
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	var infos []canonical.SessionInfo
	for _, dir := range a.chatsDirs(projectPath) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // transient: hashed directory may not exist for this project
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), "session-") || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := summarize(path, e.Name())
			if err != nil {
				continue
			}
			infos = append(infos, info)
		}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		ti, tj := infos[i].LastActiveAt, infos[j].LastActiveAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	return infos, nil
}

func summarize(path, fileName string) (canonical.SessionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return canonical.SessionInfo{}, err
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return canonical.SessionInfo{}, err
	}

	id := sf.SessionID
	if id == "" {
		id = strings.TrimSuffix(strings.TrimPrefix(fileName, "session-"), ".json")
	}
	info := canonical.SessionInfo{ID: id, MessageCount: len(sf.Messages)}

	if ts, ok := parseTimestamp(sf.StartTime); ok {
		info.StartedAt = &ts
	}
	var preview string
	for _, m := range sf.Messages {
		if ts, ok := parseTimestamp(m.Timestamp); ok {
			info.LastActiveAt = &ts
		}
		if preview == "" && m.Type == "user" {
			preview = truncate(m.Content, 200)
		}
	}
	info.Preview = preview
	return info, nil
}

func (a *Adapter) findSessionFile(sessionID string) string {
	entries, err := os.ReadDir(a.tmpDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		chatsDir := filepath.Join(a.tmpDir, e.Name(), "chats")
		candidate := filepath.Join(chatsDir, "session-"+sessionID+".json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		files, err := os.ReadDir(chatsDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if matchesSessionID(filepath.Join(chatsDir, f.Name()), sessionID) {
				return filepath.Join(chatsDir, f.Name())
			}
		}
	}
	return ""
}

func matchesSessionID(path, sessionID string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var sf sessionFile
	if json.Unmarshal(data, &sf) != nil {
		return false
	}
	return sf.SessionID == sessionID
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	path := a.findSessionFile(sessionID)
	if path == "" {
		return nil, adapter.ErrNotFound
	}
	return a.captureFile(path, sessionID)
}

func (a *Adapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return adapter.CaptureLatest(ctx, a, projectPath)
}

func (a *Adapter) captureFile(path, sessionID string) (*canonical.CanonicalSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, adapter.ErrLocked
		}
		return nil, adapter.ErrNotFound
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrMalformed, err)
	}

	var messages []canonical.ConversationMessage
	var startedAt *time.Time
	totalTokens := 0
	for _, m := range sf.Messages {
		role := normalizeRole(m.Type)
		if role == "" {
			continue // "info" and other non-conversational entries
		}
		var tsPtr *time.Time
		if ts, ok := parseTimestamp(m.Timestamp); ok {
			tsPtr = &ts
			if startedAt == nil {
				startedAt = &ts
			}
		}
		messages = append(messages, canonical.ConversationMessage{Role: role, Content: m.Content, Timestamp: tsPtr})
		totalTokens += m.Tokens
	}

	projectPath := pathFromHashedDir(path)
	analysis := analyzer.Analyze(messages)

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceGemini,
		CapturedAt:       time.Now().UTC(),
		SessionID:        sessionID,
		SessionStartedAt: startedAt,
		Project:          canonical.ProjectContext{Path: projectPath},
		Conversation: canonical.Conversation{
			MessageCount:    len(messages),
			EstimatedTokens: totalTokens,
			Messages:        messages,
		},
		Decisions: analysis.Decisions,
		Blockers:  analysis.Blockers,
		Task: canonical.TaskState{
			Description: analysis.TaskDescription,
			Completed:   analysis.CompletedSteps,
		},
	}

	if err := canonical.Validate(session); err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrMalformed, err)
	}
	return session, nil
}

// pathFromHashedDir stands in for project-path inference: the sha256
// digest that names the storage directory is not reversible, so this
// falls back to the caller's working directory per I6.
func pathFromHashedDir(_ string) string {
	wd, _ := os.Getwd()
	return wd
}

func normalizeRole(t string) canonical.Role {
	switch t {
	case "user":
		return canonical.RoleUser
	case "gemini":
		return canonical.RoleAssistant
	default:
		return ""
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
