package canonical

import "testing"

func validSession() *CanonicalSession {
	return &CanonicalSession{
		SchemaVersion: SchemaVersion,
		Source:        SourceClaudeCode,
		SessionID:     "abc-123",
		Project:       ProjectContext{Path: "/home/user/project"},
		Conversation: Conversation{
			MessageCount: 1,
			Messages:     []ConversationMessage{{Role: RoleUser, Content: "hi"}},
		},
		Task: TaskState{Description: "Unknown task"},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validSession()); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}
}

func TestValidate_MessageCountMismatch(t *testing.T) {
	s := validSession()
	s.Conversation.MessageCount = 2
	if err := Validate(s); err == nil {
		t.Fatal("expected error for messageCount mismatch")
	}
}

func TestValidate_UnknownSource(t *testing.T) {
	s := validSession()
	s.Source = "unknown-agent"
	if err := Validate(s); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestValidate_RelativeProjectPath(t *testing.T) {
	s := validSession()
	s.Project.Path = "relative/path"
	if err := Validate(s); err == nil {
		t.Fatal("expected error for relative project path")
	}
}

func TestValidate_DuplicateFilePath(t *testing.T) {
	s := validSession()
	s.FilesChanged = []FileChange{
		{Path: "a.go", ChangeType: ChangeModified},
		{Path: "a.go", ChangeType: ChangeCreated},
	}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for duplicate file path")
	}
}

func TestValidate_CaseInsensitiveDuplicateDecision(t *testing.T) {
	s := validSession()
	s.Decisions = []string{"Use Postgres", "use postgres"}
	if err := Validate(s); err == nil {
		t.Fatal("expected error for case-insensitive duplicate decision")
	}
}

func TestValidate_OutOfOrderTimestamps(t *testing.T) {
	s := validSession()
	earlier := mustParseTime(t, "2025-01-01T00:00:00Z")
	later := mustParseTime(t, "2025-01-02T00:00:00Z")
	s.Conversation.Messages = []ConversationMessage{
		{Role: RoleUser, Content: "a", Timestamp: &later},
		{Role: RoleAssistant, Content: "b", Timestamp: &earlier},
	}
	s.Conversation.MessageCount = 2
	if err := Validate(s); err == nil {
		t.Fatal("expected error for out-of-order timestamps")
	}
}
