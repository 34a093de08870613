package compress

import (
	"strings"
	"testing"

	"github.com/Kushalwho/handoff/internal/canonical"
)

func TestEstimateTokens_RoundsUp(t *testing.T) {
	if got := EstimateTokens("abc"); got != 1 {
		t.Fatalf("EstimateTokens(3 chars) = %d, want 1", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Fatalf("EstimateTokens(5 chars) = %d, want 2", got)
	}
}

func baseSession() *canonical.CanonicalSession {
	return &canonical.CanonicalSession{
		SchemaVersion: canonical.SchemaVersion,
		Source:        canonical.SourceClaudeCode,
		SessionID:     "sess-1",
		Project:       canonical.ProjectContext{Path: "/proj"},
		Task:          canonical.TaskState{Description: "Build the widget"},
		Conversation: canonical.Conversation{
			MessageCount: 2,
			Messages: []canonical.ConversationMessage{
				{Role: canonical.RoleUser, Content: "please build the widget"},
				{Role: canonical.RoleAssistant, Content: "done, the widget is built"},
			},
		},
	}
}

func TestCompress_IncludesAllLayersWithAmpleBudget(t *testing.T) {
	s := baseSession()
	result := Compress(s, Options{TargetTokens: 100000})
	found := false
	for _, name := range result.IncludedLayers {
		if name == "TASK STATE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TASK STATE in included layers, got %v", result.IncludedLayers)
	}
	if len(result.DroppedLayers) != 0 {
		t.Fatalf("expected no dropped layers, got %v", result.DroppedLayers)
	}
}

func TestCompress_TightBudgetDropsLowPriorityLayers(t *testing.T) {
	s := baseSession()
	s.FilesChanged = []canonical.FileChange{{Path: "a.go", ChangeType: canonical.ChangeModified, Diff: strings.Repeat("x", 5000)}}
	result := Compress(s, Options{TargetTokens: 450})
	dropped := make(map[string]bool)
	for _, n := range result.DroppedLayers {
		dropped[n] = true
	}
	if !dropped["RECENT MESSAGES"] && !dropped["FULL HISTORY"] {
		t.Fatalf("expected at least one low-priority layer dropped under a tight budget, got included=%v dropped=%v", result.IncludedLayers, result.DroppedLayers)
	}
}

func TestCompress_TruncatesHighPriorityLayerRatherThanDroppingIt(t *testing.T) {
	s := baseSession()
	s.Task.Description = strings.Repeat("task detail ", 500)
	result := Compress(s, Options{TargetTokens: 500})
	for _, n := range result.DroppedLayers {
		if n == "TASK STATE" {
			t.Fatalf("TASK STATE should be truncated, not dropped, under a tight budget")
		}
	}
}

func TestCompress_ZeroTargetTokensFallsBackToDefaultBudget(t *testing.T) {
	s := baseSession()
	result := Compress(s, Options{TargetTokens: 0})
	// TargetTokens of 0 falls back to the default agent budget, so this
	// exercises the resolveBudget fallback path rather than a literal
	// zero budget.
	if result.TotalTokens < 0 {
		t.Fatalf("TotalTokens should never be negative, got %d", result.TotalTokens)
	}
}
