// Package droid implements the adapter.Adapter contract for Factory
// Droid, whose sessions are a flat directory of append-only JSONL
// files under ~/.factory/sessions/<sessionId>.jsonl — one file per
// session, unlike claude-code's per-project subdirectories.
package droid

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapter/contentblock"
	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/analyzer"
	"github.com/Kushalwho/handoff/internal/canonical"
)

var scannerBufPool = sync.Pool{
	New: func() any { return make([]byte, 1024*1024) },
}

// Adapter implements adapter.Adapter for Factory Droid.
type Adapter struct {
	sessionsDir string
}

// New creates a Droid adapter rooted at the registry's storage path.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceDroid)
	root := entry.StorageRoot()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".factory", "sessions")
	}
	return &Adapter{sessionsDir: root}
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceDroid }

func (a *Adapter) Detect() bool {
	entries, err := os.ReadDir(a.sessionsDir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	entries, err := os.ReadDir(a.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var infos []canonical.SessionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(a.sessionsDir, e.Name())
		info, err := summarize(path, e.Name())
		if err != nil {
			continue // transient per-session failure, skip and continue
		}
		if projectPath != "" && info.ProjectPath != "" && !cwdMatches(info.ProjectPath, projectPath) {
			continue
		}
		infos = append(infos, info)
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

func cwdMatches(cwd, projectPath string) bool {
	cwd = filepath.Clean(cwd)
	projectPath = filepath.Clean(projectPath)
	return cwd == projectPath || strings.HasPrefix(cwd, projectPath+string(filepath.Separator))
}

func summarize(path, fileName string) (canonical.SessionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return canonical.SessionInfo{}, err
	}
	defer f.Close()

	buf := scannerBufPool.Get().([]byte)
	defer scannerBufPool.Put(buf)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(buf, 10*1024*1024)

	id := strings.TrimSuffix(fileName, ".jsonl")
	info := canonical.SessionInfo{ID: id}
	count := 0
	var preview string

	for scanner.Scan() {
		var raw rawEntry
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		if raw.Role == "" {
			continue
		}
		count++
		ts, ok := parseTimestamp(raw.Timestamp)
		if ok {
			if info.StartedAt == nil {
				info.StartedAt = &ts
			}
			info.LastActiveAt = &ts
		}
		if info.ProjectPath == "" && raw.CWD != "" {
			info.ProjectPath = raw.CWD
		}
		if preview == "" && contentblock.NormalizeRole(raw.Role) == canonical.RoleUser {
			text, _ := contentblock.DecodeContent(raw.Content)
			preview = truncate(text, 200)
		}
	}
	info.MessageCount = count
	info.Preview = preview
	return info, nil
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	path := filepath.Join(a.sessionsDir, sessionID+".jsonl")
	if _, err := os.Stat(path); err != nil {
		return nil, adapter.ErrNotFound
	}
	return a.captureFile(path, sessionID)
}

func (a *Adapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return adapter.CaptureLatest(ctx, a, projectPath)
}

func (a *Adapter) captureFile(path, sessionID string) (*canonical.CanonicalSession, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, adapter.ErrLocked
		}
		return nil, adapter.ErrNotFound
	}
	defer f.Close()

	buf := scannerBufPool.Get().([]byte)
	defer scannerBufPool.Put(buf)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(buf, 10*1024*1024)

	seenIDs := make(map[string]bool)
	var messages []canonical.ConversationMessage
	fileChanges := make(map[string]canonical.FileChange)
	var fileOrder []string
	toolCounts := make(map[string]int)
	toolSamples := make(map[string][]string)
	totalTokens := 0
	var cwd string
	var startedAt *time.Time

	for scanner.Scan() {
		var raw rawEntry
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue // malformed line, tolerated
		}
		if raw.Role == "" {
			continue
		}
		if raw.ID != "" {
			if seenIDs[raw.ID] {
				continue // duplicate id: keep first occurrence
			}
			seenIDs[raw.ID] = true
		}
		if cwd == "" && raw.CWD != "" {
			cwd = raw.CWD
		}

		ts, hasTS := parseTimestamp(raw.Timestamp)
		var tsPtr *time.Time
		if hasTS {
			tsPtr = &ts
			if startedAt == nil {
				startedAt = &ts
			}
		}

		role := contentblock.NormalizeRole(raw.Role)
		text, toolMsgs := contentblock.DecodeContent(raw.Content)
		if strings.TrimSpace(text) != "" || len(toolMsgs) == 0 {
			messages = append(messages, canonical.ConversationMessage{Role: role, Content: text, Timestamp: tsPtr})
		}
		for _, tm := range toolMsgs {
			if tm.IsResult {
				messages = append(messages, canonical.ConversationMessage{Role: canonical.RoleTool, Content: tm.Payload, Timestamp: tsPtr})
				continue
			}
			messages = append(messages, canonical.ConversationMessage{Role: canonical.RoleTool, Content: tm.Payload, ToolName: tm.ToolName, Timestamp: tsPtr})
			toolCounts[tm.ToolName]++
			if len(toolSamples[tm.ToolName]) < 3 {
				toolSamples[tm.ToolName] = append(toolSamples[tm.ToolName], truncate(tm.Payload, 120))
			}
			var args map[string]any
			_ = json.Unmarshal([]byte(tm.Payload), &args)
			recordFileChange(tm.ToolName, args, fileChanges, &fileOrder)
		}

		var usage map[string]any
		_ = json.Unmarshal(raw.Usage, &usage)
		totalTokens += contentblock.SumUsageTokens(usage)
	}

	projectPath := cwd
	if projectPath == "" {
		projectPath, _ = os.Getwd()
	}

	analysis := analyzer.Analyze(messages)

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceDroid,
		CapturedAt:       time.Now().UTC(),
		SessionID:        sessionID,
		SessionStartedAt: startedAt,
		Project:          canonical.ProjectContext{Path: projectPath},
		Conversation: canonical.Conversation{
			MessageCount:    len(messages),
			EstimatedTokens: totalTokens,
			Messages:        messages,
		},
		FilesChanged: orderedFileChanges(fileOrder, fileChanges),
		Decisions:    analysis.Decisions,
		Blockers:     analysis.Blockers,
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

func recordFileChange(toolName string, args map[string]any, fileChanges map[string]canonical.FileChange, order *[]string) {
	ct, ok := contentblock.ClassifyWriteTool(toolName)
	if !ok {
		if contentblock.ShellToolNames[strings.ToLower(toolName)] {
			if cmd, ok := args["command"].(string); ok {
				if p, ok := contentblock.ExtractPathFromShellRedirect(cmd); ok {
					if _, exists := fileChanges[p]; !exists {
						*order = append(*order, p)
					}
					fileChanges[p] = canonical.FileChange{Path: p, ChangeType: canonical.ChangeModified, Language: contentblock.LanguageFromExt(p)}
				}
			}
		}
		return
	}
	path, ok := contentblock.ExtractFilePath(args)
	if !ok {
		return
	}
	if _, exists := fileChanges[path]; !exists {
		*order = append(*order, path)
	}
	fileChanges[path] = canonical.FileChange{Path: path, ChangeType: ct, Language: contentblock.LanguageFromExt(path)}
}

func orderedFileChanges(order []string, m map[string]canonical.FileChange) []canonical.FileChange {
	out := make([]canonical.FileChange, 0, len(order))
	for _, p := range order {
		out = append(out, m[p])
	}
	return out
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
