package copilot

import "time"

// workspaceYAML is the per-session workspace.yaml manifest next to
// events.jsonl.
type workspaceYAML struct {
	GitRoot   string    `yaml:"git_root"`
	CWD       string    `yaml:"cwd"`
	Summary   string    `yaml:"summary"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// copilotEvent is one line of a session's events.jsonl stream.
type copilotEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}
