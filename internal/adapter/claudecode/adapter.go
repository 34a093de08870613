// Package claudecode implements the adapter.Adapter contract for
// Claude Code, whose sessions are append-only JSONL transcripts under
// ~/.claude/projects/<dash-encoded-path>/<session-uuid>.jsonl.
package claudecode

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
	"github.com/Kushalwho/handoff/internal/pathhash"
)

// scannerBufPool recycles the bufio.Scanner read buffer across calls;
// Claude Code transcripts routinely exceed the default 64KB token size.
var scannerBufPool = sync.Pool{
	New: func() any { return make([]byte, 1024*1024) },
}

// Adapter implements adapter.Adapter for Claude Code.
type Adapter struct {
	projectsDir string
}

// New creates a Claude Code adapter rooted at the registry's storage
// path. On a WSL host where the native root is absent, it falls back to
// the mounted Windows user directory's equivalent path.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceClaudeCode)
	root := entry.StorageRoot()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".claude", "projects")
	}
	if _, err := os.Stat(root); err != nil {
		for _, winHome := range registry.WindowsUserDirsFallback() {
			candidate := filepath.Join(winHome, ".claude", "projects")
			if _, err := os.Stat(candidate); err == nil {
				root = candidate
				break
			}
		}
	}
	return &Adapter{projectsDir: root}
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceClaudeCode }

func (a *Adapter) Detect() bool {
	entries, err := os.ReadDir(a.projectsDir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// projectDir resolves the per-project transcript directory for a
// given absolute project path using Claude Code's dash encoding.
func (a *Adapter) projectDir(projectPath string) string {
	return filepath.Join(a.projectsDir, pathhash.EncodeClaudeCode(projectPath, false))
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	var dirs []string
	if projectPath != "" {
		dirs = []string{a.projectDir(projectPath)}
	} else {
		entries, err := os.ReadDir(a.projectsDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read projects dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(a.projectsDir, e.Name()))
			}
		}
	}

	var infos []canonical.SessionInfo
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // transient: directory may not exist for this project
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := summarize(path, e.Name())
			if err != nil {
				continue // transient per-session failure, skip and continue
			}
			infos = append(infos, info)
		}
	}

	sort.SliceStable(infos, func(i, j int) bool {
		ti, tj := infos[i].LastActiveAt, infos[j].LastActiveAt
		if ti == nil && tj == nil {
			return false
		}
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
	return infos, nil
}

func summarize(path, fileName string) (canonical.SessionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return canonical.SessionInfo{}, err
	}
	defer f.Close()

	id := strings.TrimSuffix(fileName, ".jsonl")
	info := canonical.SessionInfo{ID: id}

	buf := scannerBufPool.Get().([]byte)
	defer scannerBufPool.Put(buf)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(buf, 10*1024*1024)

	count := 0
	var preview string
	for scanner.Scan() {
		var raw rawEntry
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		if raw.Type != "user" && raw.Type != "assistant" {
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
		if preview == "" && raw.Type == "user" && raw.Message != nil {
			text, _ := contentblock.DecodeContent(raw.Message.Content)
			preview = truncate(text, 200)
		}
		if info.ProjectPath == "" && raw.CWD != "" {
			info.ProjectPath = raw.CWD
		}
	}
	info.MessageCount = count
	info.Preview = preview
	return info, nil
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	path := a.findSessionFile(sessionID)
	if path == "" {
		return nil, adapter.ErrNotFound
	}
	return a.captureFile(path, sessionID, "")
}

func (a *Adapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return adapter.CaptureLatest(ctx, a, projectPath)
}

func (a *Adapter) findSessionFile(sessionID string) string {
	entries, err := os.ReadDir(a.projectsDir)
	if err != nil {
		return ""
	}
	for _, projDir := range entries {
		if !projDir.IsDir() {
			continue
		}
		path := filepath.Join(a.projectsDir, projDir.Name(), sessionID+".jsonl")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (a *Adapter) captureFile(path, sessionID, callerProjectPath string) (*canonical.CanonicalSession, error) {
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

	appendMsg := func(role canonical.Role, content string, toolName string, ts *time.Time) {
		messages = append(messages, canonical.ConversationMessage{
			Role: role, Content: content, ToolName: toolName, Timestamp: ts,
		})
	}

	recordFileChange := func(toolName string, args map[string]any) {
		ct, ok := contentblock.ClassifyWriteTool(toolName)
		if !ok {
			if contentblock.ShellToolNames[strings.ToLower(toolName)] {
				if cmd, ok := args["command"].(string); ok {
					if p, ok := contentblock.ExtractPathFromShellRedirect(cmd); ok {
						if _, exists := fileChanges[p]; !exists {
							fileOrder = append(fileOrder, p)
						}
						fileChanges[p] = canonical.FileChange{
							Path: p, ChangeType: canonical.ChangeModified, Language: contentblock.LanguageFromExt(p),
						}
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
			fileOrder = append(fileOrder, path)
		}
		fc := canonical.FileChange{Path: path, ChangeType: ct, Language: contentblock.LanguageFromExt(path)}
		if s, ok := args["content"].(string); ok {
			fc.Diff = truncate(s, 2000)
		} else if s, ok := args["new_string"].(string); ok {
			fc.Diff = truncate(s, 2000)
		}
		fileChanges[path] = fc
	}

	for scanner.Scan() {
		var raw rawEntry
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue // malformed line, tolerated
		}
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		if raw.UUID != "" {
			if seenIDs[raw.UUID] {
				continue // duplicate id: keep first occurrence
			}
			seenIDs[raw.UUID] = true
		}
		if raw.Message == nil {
			continue
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

		role := contentblock.NormalizeRole(raw.Message.Role)
		text, toolMsgs := contentblock.DecodeContent(raw.Message.Content)
		if strings.TrimSpace(text) != "" || len(toolMsgs) == 0 {
			appendMsg(role, text, "", tsPtr)
		}
		for _, tm := range toolMsgs {
			if tm.IsResult {
				appendMsg(canonical.RoleTool, tm.Payload, "", tsPtr)
				continue
			}
			appendMsg(canonical.RoleTool, tm.Payload, tm.ToolName, tsPtr)
			toolCounts[tm.ToolName]++
			if len(toolSamples[tm.ToolName]) < 3 {
				toolSamples[tm.ToolName] = append(toolSamples[tm.ToolName], truncate(tm.Payload, 120))
			}
			var args map[string]any
			_ = json.Unmarshal([]byte(tm.Payload), &args)
			recordFileChange(tm.ToolName, args)
		}

		if raw.Message.Usage != nil {
			totalTokens += raw.Message.Usage.InputTokens + raw.Message.Usage.OutputTokens
		}
	}
	// scanner.Err() intentionally ignored beyond this point: a partial
	// trailing line on an active session is discarded silently.

	projectPath := resolveProjectPath(cwd, path, callerProjectPath)

	analysis := analyzer.Analyze(messages)

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceClaudeCode,
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

// resolveProjectPath implements the project-path inference order:
// per-entry cwd -> path-hash decode of the enclosing directory ->
// caller-supplied path.
func resolveProjectPath(cwd, sessionFilePath, callerPath string) string {
	if cwd != "" {
		return cwd
	}
	dirName := filepath.Base(filepath.Dir(sessionFilePath))
	if decoded := pathhash.DecodeClaudeCode(dirName); decoded != "" {
		return decoded
	}
	return callerPath
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
