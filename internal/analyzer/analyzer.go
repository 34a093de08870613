// Package analyzer derives structured task state from a session's
// free-form conversation messages: a pure function with no I/O.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/Kushalwho/handoff/internal/canonical"
)

// Result is the analyzer's extracted view of a conversation.
type Result struct {
	TaskDescription string
	Decisions       []string
	Blockers        []string
	CompletedSteps  []string
}

var acknowledgements = map[string]bool{
	"yes": true, "ok": true, "okay": true, "sure": true, "continue": true,
	"go ahead": true, "proceed": true, "sounds good": true, "do it": true,
	"yep": true, "yeah": true,
}

var interruptedRe = regexp.MustCompile(`(?i)interrupted`)

// decisionRes are phrase patterns marking an assistant sentence as a
// recorded design decision.
var decisionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bI'll (use|choose|pick)\b`),
	regexp.MustCompile(`(?i)\blet'?s (use|go with)\b`),
	regexp.MustCompile(`(?i)\bdecided to\b`),
	regexp.MustCompile(`(?i)\bchoosing\b.+\bover\b`),
	regexp.MustCompile(`(?i)\bbetter to use\b`),
	regexp.MustCompile(`(?i)\bis better than\b`),
	regexp.MustCompile(`(?i)\busing\b.+\bfor\b`),
	regexp.MustCompile(`(?i)\bpicked\b.+\bbecause\b`),
	regexp.MustCompile(`(?i)\binstead of\b`),
}

var blockerMarkers = []string{
	"error", "failed", "unable to", "can't", "cannot", "permission denied",
	"not found", "404", "500", "timeout", "econnrefused",
}

var stackFrameRe = regexp.MustCompile(`^at \S+`)

var completionVerbRe = regexp.MustCompile(`(?i)\b(done|completed|finished|created|added|updated|fixed|implemented|resolved|configured|refactored|verified)\b`)
var futureTenseRe = regexp.MustCompile(`(?i)\b(I'll|I will|we'll|going to)\b`)

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)
var leadingBulletRe = regexp.MustCompile(`^[\s*\-•]+`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// Analyze implements spec §4.2 exactly.
func Analyze(messages []canonical.ConversationMessage) Result {
	var r Result

	for _, m := range messages {
		if m.Role != canonical.RoleUser {
			continue
		}
		if isMeaningful(m.Content) {
			r.TaskDescription = truncateEllipsis(m.Content, 300)
			break
		}
	}
	if r.TaskDescription == "" {
		for _, m := range messages {
			if m.Role != canonical.RoleAssistant {
				continue
			}
			if isMeaningful(m.Content) {
				r.TaskDescription = truncateEllipsis(m.Content, 300)
				break
			}
		}
	}
	if r.TaskDescription == "" {
		r.TaskDescription = "Unknown task"
	}

	seenDecisions := make(map[string]bool)
	for _, m := range messages {
		if m.Role != canonical.RoleAssistant {
			continue
		}
		for _, sentence := range splitSentences(m.Content) {
			if len(r.Decisions) >= 10 {
				break
			}
			if !matchesAny(decisionRes, sentence) {
				continue
			}
			clean := cleanSentence(sentence)
			if clean == "" {
				continue
			}
			key := strings.ToLower(clean)
			if seenDecisions[key] {
				continue
			}
			seenDecisions[key] = true
			r.Decisions = append(r.Decisions, clean)
		}
	}

	seenBlockers := make(map[string]bool)
	for _, m := range messages {
		for _, line := range strings.Split(m.Content, "\n") {
			if len(r.Blockers) >= 10 {
				break
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if !matchesBlocker(trimmed) {
				continue
			}
			canon := canonicalizeBlocker(trimmed)
			canon = truncate(canon, 160)
			key := strings.ToLower(canon)
			if seenBlockers[key] {
				continue
			}
			seenBlockers[key] = true
			r.Blockers = append(r.Blockers, canon)
		}
	}

	seenCompleted := make(map[string]bool)
	for _, m := range messages {
		if m.Role != canonical.RoleAssistant {
			continue
		}
		for _, sentence := range splitSentences(m.Content) {
			if len(r.CompletedSteps) >= 15 {
				break
			}
			if !completionVerbRe.MatchString(sentence) || futureTenseRe.MatchString(sentence) {
				continue
			}
			clean := cleanSentence(sentence)
			if clean == "" {
				continue
			}
			clean = truncate(clean, 100)
			key := strings.ToLower(clean)
			if seenCompleted[key] {
				continue
			}
			seenCompleted[key] = true
			r.CompletedSteps = append(r.CompletedSteps, clean)
		}
	}

	return r
}

func isMeaningful(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < 15 {
		return false
	}
	if strings.HasPrefix(trimmed, "[") {
		return false
	}
	if interruptedRe.MatchString(trimmed) {
		return false
	}
	stripped := strings.ToLower(strings.TrimRight(trimmed, ".!?"))
	if acknowledgements[stripped] {
		return false
	}
	return true
}

func splitSentences(content string) []string {
	parts := sentenceSplitRe.Split(content, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func matchesBlocker(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range blockerMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return stackFrameRe.MatchString(line)
}

func canonicalizeBlocker(line string) string {
	if stackFrameRe.MatchString(line) {
		return "Stack trace: " + strings.TrimSpace(strings.TrimPrefix(line, "at "))
	}
	lower := strings.ToLower(line)
	if idx := strings.Index(lower, "error"); idx >= 0 {
		rest := strings.TrimSpace(line[idx+len("error"):])
		rest = strings.TrimLeft(rest, ":- ")
		if rest != "" {
			return "Error: " + rest
		}
		return "Error: " + strings.TrimSpace(line)
	}
	if strings.Contains(lower, "failed") {
		idx := strings.Index(lower, "failed")
		rest := strings.TrimSpace(line[idx+len("failed"):])
		rest = strings.TrimLeft(rest, ":- ")
		if rest != "" {
			return "Failed: " + rest
		}
		return "Failed: " + strings.TrimSpace(line)
	}
	return strings.TrimSpace(line)
}

func cleanSentence(s string) string {
	s = leadingBulletRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncateEllipsis(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-len("…")] + "…"
}
