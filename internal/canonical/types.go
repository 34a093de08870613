// Package canonical defines the CanonicalSession data model produced by
// every adapter and consumed by every downstream stage of the handoff
// pipeline (analyzer, enrichment, compression, prompt builder).
package canonical

import "time"

// Source identifies which AI coding assistant produced a session.
type Source string

const (
	SourceClaudeCode Source = "claude-code"
	SourceCursor     Source = "cursor"
	SourceCodex      Source = "codex"
	SourceCopilot    Source = "copilot"
	SourceGemini     Source = "gemini"
	SourceOpencode   Source = "opencode"
	SourceDroid      Source = "droid"
)

// knownSources lists every valid Source value; unmarshalling anything
// outside this set is a Malformed error (see Validate).
var knownSources = map[Source]bool{
	SourceClaudeCode: true,
	SourceCursor:     true,
	SourceCodex:      true,
	SourceCopilot:    true,
	SourceGemini:     true,
	SourceOpencode:   true,
	SourceDroid:      true,
}

// SchemaVersion is the fixed schemaVersion stamped on every CanonicalSession.
const SchemaVersion = "1.0"

// Role is the speaker of a ConversationMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ChangeType classifies a FileChange.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// ConversationMessage is one turn in a captured session.
type ConversationMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolName   string     `json:"toolName,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	TokenCount int        `json:"tokenCount,omitempty"`
}

// FileChange records a touched file and, when available, its diff.
type FileChange struct {
	Path       string     `json:"path"`
	ChangeType ChangeType `json:"changeType"`
	Diff       string     `json:"diff,omitempty"`
	Language   string     `json:"language,omitempty"`
}

// TaskState is the analyzer's extracted view of what the session is doing.
type TaskState struct {
	Description string   `json:"description"`
	Completed   []string `json:"completed,omitempty"`
	Remaining   []string `json:"remaining,omitempty"`
	InProgress  string   `json:"inProgress,omitempty"`
	Blockers    []string `json:"blockers,omitempty"`
}

// ProjectContext is the enrichment stage's view of the project directory.
type ProjectContext struct {
	Path               string   `json:"path"`
	Name               string   `json:"name,omitempty"`
	GitBranch          string   `json:"gitBranch,omitempty"`
	GitStatus          string   `json:"gitStatus,omitempty"`
	GitLog             []string `json:"gitLog,omitempty"`
	Structure          string   `json:"structure,omitempty"`
	MemoryFileContents string   `json:"memoryFileContents,omitempty"`
}

// ToolActivitySummary aggregates repeated uses of one tool.
type ToolActivitySummary struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Samples []string `json:"samples,omitempty"`
}

// Conversation is the message stream plus its size bookkeeping.
type Conversation struct {
	MessageCount     int                   `json:"messageCount"`
	EstimatedTokens  int                   `json:"estimatedTokens"`
	Messages         []ConversationMessage `json:"messages"`
}

// CanonicalSession is the normalized record every adapter produces.
type CanonicalSession struct {
	SchemaVersion    string                `json:"schemaVersion"`
	Source           Source                `json:"source"`
	CapturedAt       time.Time             `json:"capturedAt"`
	SessionID        string                `json:"sessionId"`
	SessionStartedAt *time.Time            `json:"sessionStartedAt,omitempty"`
	Project          ProjectContext        `json:"project"`
	Conversation     Conversation          `json:"conversation"`
	FilesChanged     []FileChange          `json:"filesChanged,omitempty"`
	Decisions        []string              `json:"decisions,omitempty"`
	Blockers         []string              `json:"blockers,omitempty"`
	Task             TaskState             `json:"task"`
	ToolActivity     []ToolActivitySummary `json:"toolActivity,omitempty"`
}

// SessionInfo is the cheap summary returned by Adapter.ListSessions.
type SessionInfo struct {
	ID           string     `json:"id"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	MessageCount int        `json:"messageCount"`
	ProjectPath  string     `json:"projectPath,omitempty"`
	Preview      string     `json:"preview,omitempty"`
}
