// Package copilot implements the adapter.Adapter contract for GitHub
// Copilot CLI, whose sessions are a flat directory of
// <sessionId>/{workspace.yaml, events.jsonl} pairs under
// ~/.copilot/session-state.
package copilot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapter/contentblock"
	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/analyzer"
	"github.com/Kushalwho/handoff/internal/canonical"
)

// Adapter implements adapter.Adapter for GitHub Copilot CLI.
type Adapter struct {
	stateDir string
}

// New creates a Copilot adapter rooted at the registry's storage path.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceCopilot)
	root := entry.StorageRoot()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".copilot", "session-state")
	}
	return &Adapter{stateDir: root}
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceCopilot }

func (a *Adapter) Detect() bool {
	entries, err := os.ReadDir(a.stateDir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	entries, err := os.ReadDir(a.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session-state dir: %w", err)
	}

	var infos []canonical.SessionInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sessionID := e.Name()
		sessionDir := filepath.Join(a.stateDir, sessionID)
		ws, ok := readWorkspaceYAML(sessionDir)
		if !ok {
			continue // transient: session without a readable manifest, skip
		}
		if projectPath != "" && ws.GitRoot != projectPath && ws.CWD != projectPath {
			continue
		}
		eventsFile := filepath.Join(sessionDir, "events.jsonl")
		count, preview := summarizeEvents(eventsFile)
		info := canonical.SessionInfo{
			ID:           sessionID,
			MessageCount: count,
			ProjectPath:  firstNonEmpty(ws.GitRoot, ws.CWD),
			Preview:      preview,
		}
		if !ws.CreatedAt.IsZero() {
			info.StartedAt = &ws.CreatedAt
		}
		if !ws.UpdatedAt.IsZero() {
			info.LastActiveAt = &ws.UpdatedAt
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

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func readWorkspaceYAML(sessionDir string) (workspaceYAML, bool) {
	data, err := os.ReadFile(filepath.Join(sessionDir, "workspace.yaml"))
	if err != nil {
		return workspaceYAML{}, false
	}
	var ws workspaceYAML
	if yaml.Unmarshal(data, &ws) != nil {
		return workspaceYAML{}, false
	}
	return ws, true
}

func summarizeEvents(path string) (count int, preview string) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev copilotEvent
		if json.Unmarshal(scanner.Bytes(), &ev) != nil {
			continue
		}
		switch ev.Type {
		case "user.message", "assistant.message":
			count++
			if preview == "" && ev.Type == "user.message" {
				if c, ok := ev.Data["content"].(string); ok {
					preview = truncate(c, 200)
				}
			}
		}
	}
	return count, preview
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	sessionDir := filepath.Join(a.stateDir, sessionID)
	if _, err := os.Stat(sessionDir); err != nil {
		return nil, adapter.ErrNotFound
	}
	return a.captureSession(sessionDir, sessionID)
}

func (a *Adapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return adapter.CaptureLatest(ctx, a, projectPath)
}

func (a *Adapter) captureSession(sessionDir, sessionID string) (*canonical.CanonicalSession, error) {
	ws, _ := readWorkspaceYAML(sessionDir)

	f, err := os.Open(filepath.Join(sessionDir, "events.jsonl"))
	if err != nil {
		if os.IsPermission(err) {
			return nil, adapter.ErrLocked
		}
		return nil, adapter.ErrNotFound
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	seenIDs := make(map[string]bool)
	var messages []canonical.ConversationMessage
	fileChanges := make(map[string]canonical.FileChange)
	var fileOrder []string
	toolCounts := make(map[string]int)
	toolSamples := make(map[string][]string)
	toolResults := make(map[string]string)
	var startedAt *time.Time

	for scanner.Scan() {
		var ev copilotEvent
		if json.Unmarshal(scanner.Bytes(), &ev) != nil {
			continue // malformed line, tolerated
		}
		if ev.ID != "" {
			if seenIDs[ev.ID] {
				continue // duplicate id: keep first occurrence
			}
			seenIDs[ev.ID] = true
		}

		var tsPtr *time.Time
		if !ev.Timestamp.IsZero() {
			ts := ev.Timestamp
			tsPtr = &ts
			if startedAt == nil {
				startedAt = &ts
			}
		}

		switch ev.Type {
		case "user.message":
			content, _ := ev.Data["content"].(string)
			messages = append(messages, canonical.ConversationMessage{Role: canonical.RoleUser, Content: content, Timestamp: tsPtr})
		case "assistant.message":
			content, _ := ev.Data["content"].(string)
			messages = append(messages, canonical.ConversationMessage{Role: canonical.RoleAssistant, Content: content, Timestamp: tsPtr})
			if toolReqs, ok := ev.Data["toolRequests"].([]interface{}); ok {
				for _, tr := range toolReqs {
					toolMap, ok := tr.(map[string]interface{})
					if !ok {
						continue
					}
					toolCallID, _ := toolMap["toolCallId"].(string)
					toolName, _ := toolMap["name"].(string)
					argsJSON := "{}"
					var args map[string]any
					if a, ok := toolMap["arguments"].(map[string]interface{}); ok {
						args = a
						if data, err := json.Marshal(a); err == nil {
							argsJSON = string(data)
						}
					}
					messages = append(messages, canonical.ConversationMessage{
						Role: canonical.RoleTool, Content: argsJSON, ToolName: toolName, Timestamp: tsPtr,
					})
					toolCounts[toolName]++
					if len(toolSamples[toolName]) < 3 {
						toolSamples[toolName] = append(toolSamples[toolName], truncate(argsJSON, 120))
					}
					recordFileChange(toolName, args, fileChanges, &fileOrder)
					if result, ok := toolResults[toolCallID]; ok {
						messages = append(messages, canonical.ConversationMessage{Role: canonical.RoleTool, Content: result, Timestamp: tsPtr})
					}
				}
			}
		case "tool.execution_complete":
			if toolCallID, ok := ev.Data["toolCallId"].(string); ok {
				if resultData, ok := ev.Data["result"].(map[string]interface{}); ok {
					if content, ok := resultData["content"].(string); ok {
						toolResults[toolCallID] = content
					}
				}
			}
		}
	}

	projectPath := firstNonEmpty(ws.GitRoot, ws.CWD)
	if projectPath == "" {
		projectPath, _ = os.Getwd()
	}

	analysis := analyzer.Analyze(messages)

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceCopilot,
		CapturedAt:       time.Now().UTC(),
		SessionID:        sessionID,
		SessionStartedAt: startedAt,
		Project:          canonical.ProjectContext{Path: projectPath},
		Conversation: canonical.Conversation{
			MessageCount:    len(messages),
			EstimatedTokens: estimateTokens(messages),
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

func estimateTokens(messages []canonical.ConversationMessage) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
