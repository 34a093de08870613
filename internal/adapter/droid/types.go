package droid

import "encoding/json"

// rawEntry is one line of a Factory Droid session JSONL file, following
// the same append-only-stream contract as claude-code and codex.
type rawEntry struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	CWD       string          `json:"cwd"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Usage     json.RawMessage `json:"usage"`
}
