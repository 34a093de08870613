// Package enrichment populates a project's git and filesystem context
// for a captured session: branch, status, recent log, a shallow
// directory tree, and any assistant memory-file contents found at the
// project root.
package enrichment

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/canonical"
)

const gitTimeout = 3 * time.Second

// Enrich populates a ProjectContext for path. All failures are
// swallowed; an absent field means "unknown", never an error.
func Enrich(path string, source canonical.Source) canonical.ProjectContext {
	ctx := canonical.ProjectContext{
		Path:      path,
		Name:      projectName(path),
		Structure: directoryTree(path, 2, 40),
	}
	if branch, ok := gitBranch(path); ok {
		ctx.GitBranch = branch
	}
	if status, ok := gitStatus(path); ok {
		ctx.GitStatus = status
	}
	if log, ok := gitLog(path); ok {
		ctx.GitLog = log
	}
	ctx.MemoryFileContents = memoryFileContents(path, source)
	return ctx
}

func runGit(path string, args ...string) (string, bool) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

func gitBranch(path string) (string, bool) {
	out, ok := runGit(path, "branch", "--show-current")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(out), true
}

func gitStatus(path string) (string, bool) {
	out, ok := runGit(path, "status", "--short")
	if !ok {
		return "", false
	}
	return strings.TrimRight(out, "\n"), true
}

func gitLog(path string) ([]string, bool) {
	out, ok := runGit(path, "log", "--oneline", "-10")
	if !ok {
		return nil, false
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, true
	}
	return strings.Split(out, "\n"), true
}

// projectName reads package.json's "name" field when present, falling
// back to the basename of path.
func projectName(path string) string {
	data, err := os.ReadFile(filepath.Join(path, "package.json"))
	if err == nil {
		if name, ok := extractJSONName(data); ok {
			return name
		}
	}
	return filepath.Base(filepath.Clean(path))
}

// extractJSONName pulls the top-level "name" string out of raw JSON
// without a full struct decode, since package.json often carries
// fields this package has no other use for.
func extractJSONName(data []byte) (string, bool) {
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Name == "" {
		return "", false
	}
	return doc.Name, true
}

// directoryTree renders a depth-limited listing of path, excluding
// node_modules and .git, capped at maxLines.
func directoryTree(path string, maxDepth, maxLines int) string {
	var lines []string
	var walk func(dir string, depth int, prefix string)
	walk = func(dir string, depth int, prefix string) {
		if len(lines) >= maxLines || depth > maxDepth {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if len(lines) >= maxLines {
				return
			}
			name := e.Name()
			if name == "node_modules" || name == ".git" {
				continue
			}
			suffix := ""
			if e.IsDir() {
				suffix = "/"
			}
			lines = append(lines, prefix+name+suffix)
			if e.IsDir() && depth < maxDepth {
				walk(filepath.Join(dir, name), depth+1, prefix+"  ")
			}
		}
	}
	walk(path, 1, "")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n")
}

// memoryFileContents concatenates the source's known memory files
// found at path, truncated to 2000 chars.
func memoryFileContents(path string, source canonical.Source) string {
	entry, ok := registry.Lookup(source)
	if !ok {
		return ""
	}
	var parts []string
	for _, name := range entry.MemoryFiles {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			continue
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > 2000 {
		joined = joined[:2000]
	}
	return joined
}
