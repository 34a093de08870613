package canonical

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ErrMalformed is returned by Validate when a record violates the
// canonical schema. Adapters must not silently coerce a record into
// validity; they surface this error instead.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed canonical session: %s", e.Reason)
}

func malformed(format string, args ...any) error {
	return &ErrMalformed{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a CanonicalSession against invariants I1-I6 from the
// data model. It never mutates s.
func Validate(s *CanonicalSession) error {
	if s == nil {
		return malformed("nil session")
	}
	if s.SchemaVersion != SchemaVersion {
		return malformed("schemaVersion %q, want %q", s.SchemaVersion, SchemaVersion)
	}
	if !knownSources[s.Source] {
		return malformed("unknown source %q", s.Source)
	}
	if s.SessionID == "" {
		return malformed("empty sessionId")
	}

	// I1: messageCount matches len(messages).
	if s.Conversation.MessageCount != len(s.Conversation.Messages) {
		return malformed("messageCount %d != len(messages) %d", s.Conversation.MessageCount, len(s.Conversation.Messages))
	}

	// I2: messages sorted non-strictly ascending by timestamp when present.
	var prev *ConversationMessage
	for i := range s.Conversation.Messages {
		m := &s.Conversation.Messages[i]
		if m.Role != RoleUser && m.Role != RoleAssistant && m.Role != RoleSystem && m.Role != RoleTool {
			return malformed("message %d: unknown role %q", i, m.Role)
		}
		if prev != nil && prev.Timestamp != nil && m.Timestamp != nil {
			if m.Timestamp.Before(*prev.Timestamp) {
				return malformed("message %d: timestamp %s precedes prior message's %s", i, m.Timestamp, prev.Timestamp)
			}
		}
		prev = m
	}

	// I3: filesChanged has unique paths.
	seenPaths := make(map[string]bool, len(s.FilesChanged))
	for i, fc := range s.FilesChanged {
		if seenPaths[fc.Path] {
			return malformed("filesChanged[%d]: duplicate path %q", i, fc.Path)
		}
		seenPaths[fc.Path] = true
		switch fc.ChangeType {
		case ChangeCreated, ChangeModified, ChangeDeleted:
		default:
			return malformed("filesChanged[%d]: unknown changeType %q", i, fc.ChangeType)
		}
	}

	// I4: no case-insensitive repeats in decisions/blockers.
	if err := checkNoCaseInsensitiveDupes("decisions", s.Decisions); err != nil {
		return err
	}
	if err := checkNoCaseInsensitiveDupes("blockers", s.Blockers); err != nil {
		return err
	}

	// I6: project.path must be absolute.
	if s.Project.Path == "" || !filepath.IsAbs(s.Project.Path) {
		return malformed("project.path %q is not absolute", s.Project.Path)
	}

	if len(s.Task.Description) > 300 {
		return malformed("task.description exceeds 300 chars")
	}
	if len(s.Task.InProgress) > 200 {
		return malformed("task.inProgress exceeds 200 chars")
	}

	return nil
}

func checkNoCaseInsensitiveDupes(field string, values []string) error {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if seen[key] {
			return malformed("%s: case-insensitive duplicate %q", field, v)
		}
		seen[key] = true
	}
	return nil
}
