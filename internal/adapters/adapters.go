// Package adapters wires together the concrete per-source adapters so
// the CLI commands need only one import to reach all seven.
package adapters

import (
	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapter/claudecode"
	"github.com/Kushalwho/handoff/internal/adapter/codex"
	"github.com/Kushalwho/handoff/internal/adapter/copilot"
	"github.com/Kushalwho/handoff/internal/adapter/cursor"
	"github.com/Kushalwho/handoff/internal/adapter/droid"
	"github.com/Kushalwho/handoff/internal/adapter/gemini"
	"github.com/Kushalwho/handoff/internal/adapter/opencode"
	"github.com/Kushalwho/handoff/internal/canonical"
)

// All returns one instance of every supported adapter, in registry
// order.
func All() []adapter.Adapter {
	return []adapter.Adapter{
		claudecode.New(),
		cursor.New(),
		codex.New(),
		copilot.New(),
		gemini.New(),
		opencode.New(),
		droid.New(),
	}
}

// Lookup returns the adapter for a source id, or false if unknown.
func Lookup(id canonical.Source) (adapter.Adapter, bool) {
	for _, a := range All() {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Detected returns only the adapters whose Detect() reports true.
func Detected() []adapter.Adapter {
	var out []adapter.Adapter
	for _, a := range All() {
		if a.Detect() {
			out = append(out, a)
		}
	}
	return out
}
