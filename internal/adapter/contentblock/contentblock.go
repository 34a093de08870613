// Package contentblock holds the parsing rules shared by the
// append-only text-stream adapters (claude-code, codex, droid):
// structured content-block decoding, role normalization, token-usage
// aliasing, and file-path extraction from tool arguments.
package contentblock

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Kushalwho/handoff/internal/canonical"
)

// Block is one entry of a message's structured content array.
type Block struct {
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	ToolName   string          `json:"name"`
	ToolUseID  string          `json:"id"`
	Input      json.RawMessage `json:"input"`
	ToolCallID string          `json:"tool_use_id"`
	Content    json.RawMessage `json:"content"`
}

var textBlockTypes = map[string]bool{
	"text":        true,
	"output_text": true,
	"input_text":  true,
}

// ExtractText concatenates text/output_text/input_text blocks with a
// newline between each, in order.
func ExtractText(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		if textBlockTypes[b.Type] && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// DecodeContent parses a message's `content` field, which per the
// append-only stream contract is either a plain string or an ordered
// list of content blocks. It returns the joined text and any
// tool-use/tool-result synthetic messages implied by the blocks.
func DecodeContent(raw json.RawMessage) (text string, toolMessages []ToolMessage) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil
	}
	text = ExtractText(blocks)
	for _, b := range blocks {
		switch b.Type {
		case "tool_use", "tool-call":
			payload := string(b.Input)
			if payload == "" {
				payload = "{}"
			}
			toolMessages = append(toolMessages, ToolMessage{
				ToolName: b.ToolName,
				ToolID:   b.ToolUseID,
				Payload:  payload,
				IsResult: false,
			})
		case "tool_result", "tool-result":
			payload := string(b.Content)
			if payload == "" {
				payload = "{}"
			}
			toolMessages = append(toolMessages, ToolMessage{
				ToolID:   b.ToolCallID,
				Payload:  payload,
				IsResult: true,
			})
		}
	}
	return text, toolMessages
}

// ToolMessage is a synthetic tool-role message implied by a content
// block: either a tool invocation or its result.
type ToolMessage struct {
	ToolName string
	ToolID   string
	Payload  string
	IsResult bool
}

// NormalizeRole maps a source-native role string onto the canonical
// role vocabulary: developer->system, human->user, ai->assistant;
// anything else not already one of the four canonical roles becomes
// assistant.
func NormalizeRole(raw string) canonical.Role {
	switch raw {
	case "developer":
		return canonical.RoleSystem
	case "human":
		return canonical.RoleUser
	case "ai":
		return canonical.RoleAssistant
	case string(canonical.RoleUser), string(canonical.RoleAssistant), string(canonical.RoleSystem), string(canonical.RoleTool):
		return canonical.Role(raw)
	default:
		if n, err := strconv.Atoi(raw); err == nil {
			return NormalizeNumericRole(n)
		}
		return canonical.RoleAssistant
	}
}

// NormalizeNumericRole maps numeric role codes: 1 -> user, 2 -> assistant.
func NormalizeNumericRole(n int) canonical.Role {
	switch n {
	case 1:
		return canonical.RoleUser
	case 2:
		return canonical.RoleAssistant
	default:
		return canonical.RoleAssistant
	}
}

// SumUsageTokens sums input+output token counts from a generic usage
// map, accepting the prompt_tokens/completion_tokens aliases.
func SumUsageTokens(usage map[string]any) int {
	if usage == nil {
		return 0
	}
	get := func(keys ...string) int {
		for _, k := range keys {
			if v, ok := usage[k]; ok {
				switch n := v.(type) {
				case float64:
					return int(n)
				case json.Number:
					i, _ := n.Int64()
					return int(i)
				}
			}
		}
		return 0
	}
	in := get("input_tokens", "prompt_tokens")
	out := get("output_tokens", "completion_tokens")
	return in + out
}

// filePathKeys are the argument keys common write/edit/create/delete
// tool calls use to carry the affected file path.
var filePathKeys = []string{"path", "file_path", "filePath", "target"}

// ExtractFilePath pulls a target path out of a tool call's argument
// map, trying the common key aliases in order.
func ExtractFilePath(args map[string]any) (string, bool) {
	for _, k := range filePathKeys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

var shellRedirectRe = regexp.MustCompile(`>\s*([^\s|;&><]+)\s*$`)

// ExtractPathFromShellRedirect looks for a trailing `> path` style
// redirection in a shell command string, the fallback for tools whose
// arguments don't carry a structured path.
func ExtractPathFromShellRedirect(command string) (string, bool) {
	m := shellRedirectRe.FindStringSubmatch(strings.TrimSpace(command))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LanguageFromExt infers a fenced-code-block language tag from a
// file's extension; empty when unrecognized.
func LanguageFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".sh", ".bash":
		return "bash"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	case ".sql":
		return "sql"
	default:
		return ""
	}
}

// writeToolNames classifies a tool call as a file-mutating operation
// by name; adapters consult this before attempting path extraction.
var writeToolNames = map[string]canonical.ChangeType{
	"write":        canonical.ChangeCreated,
	"create":       canonical.ChangeCreated,
	"create_file":  canonical.ChangeCreated,
	"edit":         canonical.ChangeModified,
	"str_replace":  canonical.ChangeModified,
	"update":       canonical.ChangeModified,
	"apply_patch":  canonical.ChangeModified,
	"delete":       canonical.ChangeDeleted,
	"delete_file":  canonical.ChangeDeleted,
	"remove":       canonical.ChangeDeleted,
}

// ClassifyWriteTool reports whether toolName is a recognized
// write/edit/create/delete operation and, if so, its ChangeType.
// Matching is case-insensitive and tolerant of a few separators.
func ClassifyWriteTool(toolName string) (canonical.ChangeType, bool) {
	key := strings.ToLower(toolName)
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	ct, ok := writeToolNames[key]
	return ct, ok
}

// ShellToolNames identifies tools that run an arbitrary shell command,
// for which the only path-extraction route is the trailing redirect.
var ShellToolNames = map[string]bool{
	"bash":  true,
	"shell": true,
	"exec":  true,
	"run":   true,
}
