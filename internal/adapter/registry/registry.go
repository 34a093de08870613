// Package registry holds the per-source constant metadata (storage
// roots per host OS, context window sizes, memory file names) that
// every adapter and the `info`/`detect` CLI commands consult.
package registry

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/Kushalwho/handoff/internal/canonical"
)

// HostOS is one of the two host families the storage-path registry
// recognizes: Unix (darwin and linux, not told apart) and Windows.
type HostOS int

const (
	HostUnix HostOS = iota
	HostWindows
)

// CurrentHostOS maps runtime.GOOS onto the two-family model used by
// the storage-path registry (darwin and linux both resolve to Unix).
func CurrentHostOS() HostOS {
	if runtime.GOOS == "windows" {
		return HostWindows
	}
	return HostUnix
}

// Entry is the constant metadata the spec's registry (§6) requires
// per source.
type Entry struct {
	ID            canonical.Source
	DisplayName   string
	ContextWindow int
	UsableBudget  int
	MemoryFiles   []string

	// storageRoot resolves the storage root for a given home directory
	// and host OS. Returns "" when the source has no storage on that
	// host family.
	storageRoot func(home string, host HostOS) string
}

// StorageRoot resolves this entry's storage root for the current host
// and home directory. Never raises; a source with no root on this
// host returns "".
func (e Entry) StorageRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return e.storageRoot(home, CurrentHostOS())
}

// wslMarker is the kernel marker file used to detect a WSL-style
// linux-like host, per the path-discovery contract.
const wslMarker = "/proc/sys/fs/binfmt_misc/WSLInterop"

// IsWSL reports whether the current host is a WSL-style environment.
func IsWSL() bool {
	_, err := os.Stat(wslMarker)
	return err == nil
}

// WindowsUserDirsFallback enumerates plausible mounted Windows user
// home directories for a WSL host, consulted as a fallback source of
// storage roots (path-discovery contract, spec.md §4.1).
func WindowsUserDirsFallback() []string {
	if !IsWSL() {
		return nil
	}
	var out []string
	matches, _ := filepath.Glob("/mnt/c/Users/*")
	out = append(out, matches...)
	return out
}

// Entries is the ordered registry of every supported source.
var Entries = []Entry{
	{
		ID:            canonical.SourceClaudeCode,
		DisplayName:   "Claude Code",
		ContextWindow: 200_000,
		UsableBudget:  120_000,
		MemoryFiles:   []string{"CLAUDE.md", ".claude/CLAUDE.md"},
		storageRoot: func(home string, host HostOS) string {
			return filepath.Join(home, ".claude", "projects")
		},
	},
	{
		ID:            canonical.SourceCursor,
		DisplayName:   "Cursor",
		ContextWindow: 128_000,
		UsableBudget:  90_000,
		MemoryFiles:   []string{".cursorrules", ".cursor/rules"},
		storageRoot: func(home string, host HostOS) string {
			if host == HostWindows {
				return filepath.Join(home, "AppData", "Roaming", "Cursor", "User", "workspaceStorage")
			}
			return filepath.Join(home, ".config", "Cursor", "User", "workspaceStorage")
		},
	},
	{
		ID:            canonical.SourceCodex,
		DisplayName:   "Codex CLI",
		ContextWindow: 128_000,
		UsableBudget:  90_000,
		MemoryFiles:   []string{"AGENTS.md"},
		storageRoot: func(home string, host HostOS) string {
			return filepath.Join(home, ".codex", "sessions")
		},
	},
	{
		ID:            canonical.SourceCopilot,
		DisplayName:   "GitHub Copilot CLI",
		ContextWindow: 128_000,
		UsableBudget:  90_000,
		MemoryFiles:   []string{".github/copilot-instructions.md"},
		storageRoot: func(home string, host HostOS) string {
			return filepath.Join(home, ".copilot", "session-state")
		},
	},
	{
		ID:            canonical.SourceGemini,
		DisplayName:   "Gemini CLI",
		ContextWindow: 1_000_000,
		UsableBudget:  120_000,
		MemoryFiles:   []string{"GEMINI.md"},
		storageRoot: func(home string, host HostOS) string {
			return filepath.Join(home, ".gemini", "tmp")
		},
	},
	{
		ID:            canonical.SourceOpencode,
		DisplayName:   "OpenCode",
		ContextWindow: 128_000,
		UsableBudget:  90_000,
		MemoryFiles:   []string{"AGENTS.md", ".opencode/AGENTS.md"},
		storageRoot: func(home string, host HostOS) string {
			switch {
			case host == HostWindows:
				if v := os.Getenv("LOCALAPPDATA"); v != "" {
					return filepath.Join(v, "opencode", "Data", "storage")
				}
				return ""
			case runtime.GOOS == "darwin":
				return filepath.Join(home, "Library", "Application Support", "opencode", "storage")
			default:
				xdg := os.Getenv("XDG_DATA_HOME")
				if xdg == "" {
					xdg = filepath.Join(home, ".local", "share")
				}
				return filepath.Join(xdg, "opencode", "storage")
			}
		},
	},
	{
		ID:            canonical.SourceDroid,
		DisplayName:   "Factory Droid",
		ContextWindow: 128_000,
		UsableBudget:  38_000,
		MemoryFiles:   []string{"AGENTS.md", ".factory/AGENTS.md"},
		storageRoot: func(home string, host HostOS) string {
			return filepath.Join(home, ".factory", "sessions")
		},
	},
}

// Lookup returns the Entry for a source, or false if unknown.
func Lookup(id canonical.Source) (Entry, bool) {
	for _, e := range Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// TargetBudget resolves a usable-token budget for a named output
// target: "clipboard"/"file" get a fixed budget; a known agent id
// resolves through the registry; anything else falls back to the
// clipboard default.
func TargetBudget(target string) int {
	switch target {
	case "", "clipboard", "file":
		return 19_000
	default:
		if e, ok := Lookup(canonical.Source(target)); ok {
			return e.UsableBudget
		}
		return 19_000
	}
}
