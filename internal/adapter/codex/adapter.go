// Package codex implements the adapter.Adapter contract for OpenAI
// Codex CLI, whose sessions are date-sharded append-only JSONL rollout
// files under ~/.codex/sessions/YYYY/MM/DD/rollout-*.jsonl.
package codex

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
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

// Adapter implements adapter.Adapter for Codex CLI.
type Adapter struct {
	sessionsDir string
}

// New creates a Codex adapter rooted at the registry's storage path.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceCodex)
	root := entry.StorageRoot()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".codex", "sessions")
	}
	return &Adapter{sessionsDir: root}
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceCodex }

func (a *Adapter) Detect() bool {
	_, err := os.Stat(a.sessionsDir)
	return err == nil
}

// listRolloutFiles walks the YYYY/MM/DD shard tree and returns every
// rollout file, streaming rather than buffering the whole tree.
func (a *Adapter) listRolloutFiles() []string {
	var files []string
	_ = filepath.WalkDir(a.sessionsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	files := a.listRolloutFiles()
	var infos []canonical.SessionInfo
	for _, path := range files {
		info, cwd, err := summarize(path)
		if err != nil {
			continue // transient per-file failure, skip and continue
		}
		if projectPath != "" && !cwdMatches(cwd, projectPath) {
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

func summarize(path string) (canonical.SessionInfo, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return canonical.SessionInfo{}, "", err
	}
	defer f.Close()

	buf := scannerBufPool.Get().([]byte)
	defer scannerBufPool.Put(buf)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(buf, 10*1024*1024)

	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	info := canonical.SessionInfo{ID: id}
	var cwd, preview string
	count := 0

	for scanner.Scan() {
		var rec rawRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		ts, hasTS := parseTimestamp(rec.Timestamp)
		switch rec.Type {
		case "session_meta":
			var meta sessionMetaPayload
			if json.Unmarshal(rec.Payload, &meta) == nil {
				if meta.ID != "" {
					id = meta.ID
					info.ID = id
				}
				cwd = meta.CWD
			}
		case "response_item":
			var item responseItemPayload
			if json.Unmarshal(rec.Payload, &item) != nil {
				continue
			}
			if item.Type != "message" {
				continue
			}
			count++
			if hasTS {
				if info.StartedAt == nil {
					info.StartedAt = &ts
				}
				info.LastActiveAt = &ts
			}
			if preview == "" && item.Role == "user" {
				text, _ := contentblock.DecodeContent(item.Content)
				preview = truncate(text, 200)
			}
		}
	}
	info.MessageCount = count
	info.Preview = preview
	info.ProjectPath = cwd
	return info, cwd, nil
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	path := a.findSessionFile(sessionID)
	if path == "" {
		return nil, adapter.ErrNotFound
	}
	return a.captureFile(path, sessionID)
}

func (a *Adapter) findSessionFile(sessionID string) string {
	for _, path := range a.listRolloutFiles() {
		if strings.TrimSuffix(filepath.Base(path), ".jsonl") == sessionID {
			return path
		}
		if matchesSessionMetaID(path, sessionID) {
			return path
		}
	}
	return ""
}

func matchesSessionMetaID(path, sessionID string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec rawRecord
		if json.Unmarshal(scanner.Bytes(), &rec) != nil {
			continue
		}
		if rec.Type != "session_meta" {
			continue
		}
		var meta sessionMetaPayload
		if json.Unmarshal(rec.Payload, &meta) == nil {
			return meta.ID == sessionID
		}
		return false
	}
	return false
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

	seenCallIDs := make(map[string]bool)
	var messages []canonical.ConversationMessage
	fileChanges := make(map[string]canonical.FileChange)
	var fileOrder []string
	toolCounts := make(map[string]int)
	toolSamples := make(map[string][]string)
	totalTokens := 0
	var cwd string
	var startedAt *time.Time

	for scanner.Scan() {
		var rec rawRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		ts, hasTS := parseTimestamp(rec.Timestamp)
		var tsPtr *time.Time
		if hasTS {
			tsPtr = &ts
			if startedAt == nil {
				startedAt = &ts
			}
		}

		switch rec.Type {
		case "session_meta":
			var meta sessionMetaPayload
			if json.Unmarshal(rec.Payload, &meta) == nil && meta.CWD != "" {
				cwd = meta.CWD
			}
		case "response_item":
			var item responseItemPayload
			if json.Unmarshal(rec.Payload, &item) != nil {
				continue
			}
			switch item.Type {
			case "message":
				role := contentblock.NormalizeRole(item.Role)
				text, _ := contentblock.DecodeContent(item.Content)
				messages = append(messages, canonical.ConversationMessage{Role: role, Content: text, Timestamp: tsPtr})
				if item.Usage != nil {
					totalTokens += item.Usage.InputTokens + item.Usage.OutputTokens
				}
			case "function_call":
				if item.CallID != "" {
					if seenCallIDs[item.CallID] {
						continue
					}
					seenCallIDs[item.CallID] = true
				}
				payload := item.Arguments
				if payload == "" {
					payload = "{}"
				}
				messages = append(messages, canonical.ConversationMessage{
					Role: canonical.RoleTool, Content: payload, ToolName: item.Name, Timestamp: tsPtr,
				})
				toolCounts[item.Name]++
				if len(toolSamples[item.Name]) < 3 {
					toolSamples[item.Name] = append(toolSamples[item.Name], truncate(payload, 120))
				}
				var args map[string]any
				_ = json.Unmarshal([]byte(payload), &args)
				recordFileChange(item.Name, args, fileChanges, &fileOrder)
			case "function_call_output":
				messages = append(messages, canonical.ConversationMessage{
					Role: canonical.RoleTool, Content: item.Output, Timestamp: tsPtr,
				})
			}
		}
	}

	projectPath := cwd
	if projectPath == "" {
		projectPath, _ = os.Getwd()
	}
	analysis := analyzer.Analyze(messages)

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceCodex,
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
