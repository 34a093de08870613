// Package compress packs a CanonicalSession into a single budgeted
// string for handoff, trading completeness for a target token budget
// the way a terminal UI trades detail for screen space.
package compress

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/canonical"
)

// headerFooterReserve is subtracted from the resolved budget before
// packing; the prompt builder's header/footer consume it externally.
const headerFooterReserve = 400

// Options controls budget selection.
type Options struct {
	TargetTokens int
	TargetAgent  string
}

// Result is the packed body plus bookkeeping about what made the cut.
type Result struct {
	Content        string
	TotalTokens    int
	IncludedLayers []string
	DroppedLayers  []string
}

type layer struct {
	name     string
	priority float64
	body     string
	tokens   int
}

// EstimateTokens is the sole token measure used throughout: one token
// per four characters, rounded up.
func EstimateTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 4))
}

// Compress packs s into a single string within the resolved budget.
func Compress(s *canonical.CanonicalSession, opts Options) Result {
	budget := resolveBudget(opts)
	budget -= headerFooterReserve
	if budget < 0 {
		budget = 0
	}

	layers := buildLayers(s)
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].priority < layers[j].priority })

	var included, dropped []string
	var parts []string
	remaining := budget
	totalTokens := 0

	for _, l := range layers {
		if l.tokens == 0 {
			continue
		}
		switch {
		case l.tokens <= remaining:
			parts = append(parts, l.body)
			included = append(included, l.name)
			remaining -= l.tokens
			totalTokens += l.tokens
		case l.priority <= 3 && remaining > 0:
			cut := remaining * 4
			if cut > len(l.body) {
				cut = len(l.body)
			}
			truncated := l.body[:cut]
			parts = append(parts, truncated)
			included = append(included, l.name)
			totalTokens += EstimateTokens(truncated)
			remaining = 0
		default:
			dropped = append(dropped, l.name)
		}
	}

	return Result{
		Content:        strings.Join(parts, "\n\n"),
		TotalTokens:    totalTokens,
		IncludedLayers: included,
		DroppedLayers:  dropped,
	}
}

func resolveBudget(opts Options) int {
	if opts.TargetTokens > 0 {
		return opts.TargetTokens
	}
	return registry.TargetBudget(opts.TargetAgent)
}

func buildLayers(s *canonical.CanonicalSession) []layer {
	var layers []layer
	if l := taskStateLayer(s.Task); l.body != "" {
		layers = append(layers, l)
	}
	if l := activeFilesLayer(s.FilesChanged); l.body != "" {
		layers = append(layers, l)
	}
	if l := decisionsBlockersLayer(s.Decisions, s.Blockers); l.body != "" {
		layers = append(layers, l)
	}
	if l := projectContextLayer(s.Project); l.body != "" {
		layers = append(layers, l)
	}
	if l := toolActivityLayer(s.ToolActivity); l.body != "" {
		layers = append(layers, l)
	}
	if l := sessionOverviewLayer(s.Conversation); l.body != "" {
		layers = append(layers, l)
	}
	recent, older := splitMessages(s.Conversation.Messages, 20)
	if l := recentMessagesLayer(recent); l.body != "" {
		layers = append(layers, l)
	}
	layers = append(layers, fullHistoryLayer(older))
	for i := range layers {
		layers[i].tokens = EstimateTokens(layers[i].body)
	}
	return layers
}

func taskStateLayer(t canonical.TaskState) layer {
	var b strings.Builder
	b.WriteString("## TASK STATE\n\n")
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if len(t.Completed) > 0 {
		b.WriteString("Completed:\n")
		for _, c := range t.Completed {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if t.InProgress != "" {
		fmt.Fprintf(&b, "In progress: %s\n", t.InProgress)
	}
	if len(t.Remaining) > 0 {
		b.WriteString("Remaining:\n")
		for _, r := range t.Remaining {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(t.Blockers) > 0 {
		b.WriteString("Blockers:\n")
		for _, bl := range t.Blockers {
			fmt.Fprintf(&b, "- %s\n", bl)
		}
	}
	return layer{name: "TASK STATE", priority: 1, body: strings.TrimSpace(b.String())}
}

func activeFilesLayer(files []canonical.FileChange) layer {
	if len(files) == 0 {
		return layer{name: "ACTIVE FILES", priority: 2}
	}
	limit := files
	if len(limit) > 15 {
		limit = limit[:15]
	}
	var b strings.Builder
	b.WriteString("## ACTIVE FILES\n\n")
	for _, f := range limit {
		fmt.Fprintf(&b, "### %s (%s)\n", f.Path, f.ChangeType)
		if f.Diff != "" {
			diff := f.Diff
			if len(diff) > 2000 {
				diff = diff[:2000]
			}
			lang := f.Language
			fmt.Fprintf(&b, "```%s\n%s\n```\n", lang, diff)
		}
	}
	return layer{name: "ACTIVE FILES", priority: 2, body: strings.TrimSpace(b.String())}
}

func decisionsBlockersLayer(decisions, blockers []string) layer {
	if len(decisions) == 0 && len(blockers) == 0 {
		return layer{name: "DECISIONS & BLOCKERS", priority: 3}
	}
	var b strings.Builder
	b.WriteString("## DECISIONS & BLOCKERS\n\n")
	if len(decisions) > 0 {
		b.WriteString("Decisions:\n")
		for i, d := range decisions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, d)
		}
	}
	if len(blockers) > 0 {
		b.WriteString("Blockers:\n")
		for _, bl := range blockers {
			fmt.Fprintf(&b, "- %s\n", bl)
		}
	}
	return layer{name: "DECISIONS & BLOCKERS", priority: 3, body: strings.TrimSpace(b.String())}
}

func projectContextLayer(p canonical.ProjectContext) layer {
	var b strings.Builder
	b.WriteString("## PROJECT CONTEXT\n\n")
	fmt.Fprintf(&b, "Path: %s\n", p.Path)
	if p.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
	}
	if p.GitBranch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", p.GitBranch)
	}
	if p.GitStatus != "" {
		fmt.Fprintf(&b, "Status:\n%s\n", p.GitStatus)
	}
	if p.Structure != "" {
		structure := truncateLines(p.Structure, 40)
		fmt.Fprintf(&b, "Structure:\n%s\n", structure)
	}
	if p.MemoryFileContents != "" {
		mem := p.MemoryFileContents
		if len(mem) > 2000 {
			mem = mem[:2000]
		}
		fmt.Fprintf(&b, "Memory file:\n%s\n", mem)
	}
	return layer{name: "PROJECT CONTEXT", priority: 4, body: strings.TrimSpace(b.String())}
}

func toolActivityLayer(activity []canonical.ToolActivitySummary) layer {
	if len(activity) == 0 {
		return layer{name: "TOOL ACTIVITY", priority: 4.5}
	}
	var b strings.Builder
	b.WriteString("## TOOL ACTIVITY\n\n")
	for _, a := range activity {
		fmt.Fprintf(&b, "%s (×%d): %s\n", a.Name, a.Count, strings.Join(a.Samples, " . "))
	}
	return layer{name: "TOOL ACTIVITY", priority: 4.5, body: strings.TrimSpace(b.String())}
}

func sessionOverviewLayer(c canonical.Conversation) layer {
	var b strings.Builder
	b.WriteString("## SESSION OVERVIEW\n\n")
	fmt.Fprintf(&b, "Messages: %d\n", c.MessageCount)
	fmt.Fprintf(&b, "Estimated tokens: %d\n", c.EstimatedTokens)

	var firstUser, lastUser string
	toolNames := make(map[string]bool)
	for _, m := range c.Messages {
		if m.Role == canonical.RoleUser {
			if firstUser == "" {
				firstUser = m.Content
			}
			lastUser = m.Content
		}
		if m.ToolName != "" {
			toolNames[m.ToolName] = true
		}
	}
	if firstUser != "" {
		fmt.Fprintf(&b, "First user message: %s\n", truncate(firstUser, 200))
	}
	if lastUser != "" {
		fmt.Fprintf(&b, "Last user message: %s\n", truncate(lastUser, 200))
	}
	if len(toolNames) > 0 {
		names := make([]string, 0, len(toolNames))
		for n := range toolNames {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "Tools used: %s\n", strings.Join(names, ", "))
	}
	return layer{name: "SESSION OVERVIEW", priority: 5, body: strings.TrimSpace(b.String())}
}

func splitMessages(messages []canonical.ConversationMessage, recentCount int) (recent, older []canonical.ConversationMessage) {
	if len(messages) <= recentCount {
		return messages, nil
	}
	cut := len(messages) - recentCount
	return messages[cut:], messages[:cut]
}

func recentMessagesLayer(messages []canonical.ConversationMessage) layer {
	if len(messages) == 0 {
		return layer{name: "RECENT MESSAGES", priority: 6}
	}
	var b strings.Builder
	b.WriteString("## RECENT MESSAGES\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "**%s**: %s\n", m.Role, truncate(m.Content, 1000))
	}
	return layer{name: "RECENT MESSAGES", priority: 6, body: strings.TrimSpace(b.String())}
}

func fullHistoryLayer(messages []canonical.ConversationMessage) layer {
	var b strings.Builder
	b.WriteString("## FULL HISTORY\n\n")
	if len(messages) == 0 {
		b.WriteString("(no earlier messages)\n")
	}
	for _, m := range messages {
		fmt.Fprintf(&b, "**%s**: %s\n", m.Role, truncate(m.Content, 500))
	}
	return layer{name: "FULL HISTORY", priority: 7, body: strings.TrimSpace(b.String())}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n")
}
