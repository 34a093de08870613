package enrichment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kushalwho/handoff/internal/canonical"
)

func TestEnrich_NameFromPackageJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"widgets"}`), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := Enrich(dir, canonical.SourceClaudeCode)
	if ctx.Name != "widgets" {
		t.Fatalf("Name = %q, want widgets", ctx.Name)
	}
}

func TestEnrich_NameFallsBackToBasename(t *testing.T) {
	dir := t.TempDir()
	ctx := Enrich(dir, canonical.SourceClaudeCode)
	if ctx.Name != filepath.Base(dir) {
		t.Fatalf("Name = %q, want %q", ctx.Name, filepath.Base(dir))
	}
}

func TestEnrich_MemoryFileContentsConcatenatesAndTruncates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte(strings.Repeat("a", 1500)), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, ".claude")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "CLAUDE.md"), []byte(strings.Repeat("b", 1500)), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := Enrich(dir, canonical.SourceClaudeCode)
	if len(ctx.MemoryFileContents) > 2000 {
		t.Fatalf("MemoryFileContents length = %d, want <= 2000", len(ctx.MemoryFileContents))
	}
	if !strings.HasPrefix(ctx.MemoryFileContents, strings.Repeat("a", 10)) {
		t.Fatalf("expected CLAUDE.md contents first, got %q", ctx.MemoryFileContents[:20])
	}
}

func TestEnrich_StructureExcludesNodeModulesAndGit(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"node_modules", ".git", "src"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := Enrich(dir, canonical.SourceClaudeCode)
	if strings.Contains(ctx.Structure, "node_modules") || strings.Contains(ctx.Structure, ".git") {
		t.Fatalf("Structure leaked excluded dirs: %q", ctx.Structure)
	}
	if !strings.Contains(ctx.Structure, "src/") {
		t.Fatalf("Structure missing src/: %q", ctx.Structure)
	}
}

func TestEnrich_NoGitRepoLeavesGitFieldsAbsent(t *testing.T) {
	dir := t.TempDir()
	ctx := Enrich(dir, canonical.SourceClaudeCode)
	if ctx.GitBranch != "" {
		t.Fatalf("GitBranch = %q, want empty outside a repo", ctx.GitBranch)
	}
}
