// Package opencode implements the adapter.Adapter contract for
// OpenCode, whose sessions live in a content-addressed directory tree:
// storage/project/<id>.json, storage/session/<projectId>/<id>.json,
// storage/message/<sessionId>/<messageId>.json (one file per message).
package opencode

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
)

// Adapter implements adapter.Adapter for OpenCode.
type Adapter struct {
	storageDir string
}

// New creates an OpenCode adapter rooted at the registry's storage path.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceOpencode)
	return &Adapter{storageDir: entry.StorageRoot()}
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceOpencode }

func (a *Adapter) Detect() bool {
	if a.storageDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(a.storageDir, "project"))
	return err == nil
}

func cwdMatches(cwd, projectPath string) bool {
	cwd = filepath.Clean(cwd)
	projectPath = filepath.Clean(projectPath)
	return cwd == projectPath || strings.HasPrefix(cwd, projectPath+string(filepath.Separator))
}

// projectIDsForPath resolves every project id matching projectPath, or
// every known project id when projectPath is empty.
func (a *Adapter) projectIDsForPath(projectPath string) map[string]string {
	out := make(map[string]string)
	projectDir := filepath.Join(a.storageDir, "project")
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(projectDir, e.Name()))
		if err != nil {
			continue
		}
		var pf projectFile
		if json.Unmarshal(data, &pf) != nil {
			continue
		}
		if projectPath == "" || cwdMatches(pf.Worktree, projectPath) {
			out[pf.ID] = pf.Worktree
		}
	}
	return out
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	projects := a.projectIDsForPath(projectPath)
	var infos []canonical.SessionInfo
	for projectID, worktree := range projects {
		sessionDir := filepath.Join(a.storageDir, "session", projectID)
		entries, err := os.ReadDir(sessionDir)
		if err != nil {
			continue // transient: project may have no sessions yet
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			sessionID := strings.TrimSuffix(e.Name(), ".json")
			info, err := a.summarize(sessionID, worktree)
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

func (a *Adapter) messageFiles(sessionID string) []string {
	messageDir := filepath.Join(a.storageDir, "message", sessionID)
	entries, err := os.ReadDir(messageDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(messageDir, e.Name()))
		}
	}
	sort.Strings(files) // message ids are lexicographically sortable (ULID-style)
	return files
}

func (a *Adapter) summarize(sessionID, worktree string) (canonical.SessionInfo, error) {
	files := a.messageFiles(sessionID)
	info := canonical.SessionInfo{ID: sessionID, ProjectPath: worktree, MessageCount: len(files)}
	var preview string
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var msg messageFile
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if ts, ok := parseTimestamp(msg.Timestamp); ok {
			if info.StartedAt == nil {
				info.StartedAt = &ts
			}
			info.LastActiveAt = &ts
		}
		if preview == "" && msg.Role == "user" {
			preview = truncate(msg.Content, 200)
		}
	}
	info.Preview = preview
	return info, nil
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	files := a.messageFiles(sessionID)
	if len(files) == 0 {
		if _, err := os.Stat(filepath.Join(a.storageDir, "message", sessionID)); err != nil {
			return nil, adapter.ErrNotFound
		}
	}
	return a.captureFiles(sessionID, files)
}

func (a *Adapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return adapter.CaptureLatest(ctx, a, projectPath)
}

func (a *Adapter) captureFiles(sessionID string, files []string) (*canonical.CanonicalSession, error) {
	var messages []canonical.ConversationMessage
	toolCounts := make(map[string]int)
	toolSamples := make(map[string][]string)
	totalTokens := 0
	var startedAt *time.Time
	seenIDs := make(map[string]bool)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue // transient per-message failure, tolerated
		}
		var msg messageFile
		if json.Unmarshal(data, &msg) != nil {
			continue // malformed message file, tolerated
		}
		if msg.ID != "" {
			if seenIDs[msg.ID] {
				continue
			}
			seenIDs[msg.ID] = true
		}

		var tsPtr *time.Time
		if ts, ok := parseTimestamp(msg.Timestamp); ok {
			tsPtr = &ts
			if startedAt == nil {
				startedAt = &ts
			}
		}

		role := normalizeRole(msg.Role)
		messages = append(messages, canonical.ConversationMessage{
			Role: role, Content: msg.Content, ToolName: msg.ToolName, Timestamp: tsPtr,
		})
		if msg.ToolName != "" {
			toolCounts[msg.ToolName]++
			if len(toolSamples[msg.ToolName]) < 3 {
				toolSamples[msg.ToolName] = append(toolSamples[msg.ToolName], truncate(msg.Content, 120))
			}
		}
		if msg.Tokens != nil {
			totalTokens += msg.Tokens.Input + msg.Tokens.Output
		}
	}

	projectPath := a.projectPathForSession(sessionID)
	if projectPath == "" {
		projectPath, _ = os.Getwd()
	}

	analysis := analyzer.Analyze(messages)

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceOpencode,
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
		ToolActivity: toolActivity(toolCounts, toolSamples),
	}

	if err := canonical.Validate(session); err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrMalformed, err)
	}
	return session, nil
}

// projectPathForSession walks every project looking for one whose
// session directory contains sessionID.
func (a *Adapter) projectPathForSession(sessionID string) string {
	for projectID, worktree := range a.projectIDsForPath("") {
		if _, err := os.Stat(filepath.Join(a.storageDir, "session", projectID, sessionID+".json")); err == nil {
			return worktree
		}
	}
	return ""
}

func normalizeRole(r string) canonical.Role {
	switch r {
	case "user":
		return canonical.RoleUser
	case "assistant":
		return canonical.RoleAssistant
	case "system":
		return canonical.RoleSystem
	case "tool":
		return canonical.RoleTool
	default:
		return canonical.RoleAssistant
	}
}

func toolActivity(counts map[string]int, samples map[string][]string) []canonical.ToolActivitySummary {
	if len(counts) == 0 {
		return nil
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]canonical.ToolActivitySummary, 0, len(names))
	for _, n := range names {
		out = append(out, canonical.ToolActivitySummary{Name: n, Count: counts[n], Samples: samples[n]})
	}
	return out
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
