// Package store persists and reloads the project-local .handoff/
// directory: the pretty-printed CanonicalSession JSON file and the
// rendered resume Markdown document. No process-wide state, no
// lockfiles, no daemon.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Kushalwho/handoff/internal/canonical"
)

// DirName is the project-local directory handoff persists into.
const DirName = ".handoff"

// SessionFileName is the persisted CanonicalSession, pretty-printed
// JSON matching the canonical field names exactly.
const SessionFileName = "session.json"

// ResumeFileName is the rendered resume Markdown document.
const ResumeFileName = "RESUME.md"

// Dir returns the .handoff/ directory path under projectPath.
func Dir(projectPath string) string {
	return filepath.Join(projectPath, DirName)
}

// SaveSession writes s as pretty-printed JSON to
// <projectPath>/.handoff/session.json, creating the directory if
// needed.
func SaveSession(projectPath string, s *canonical.CanonicalSession) error {
	dir := Dir(projectPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	path := filepath.Join(dir, SessionFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadSession reloads a previously persisted CanonicalSession from
// <projectPath>/.handoff/session.json and checks it with
// canonical.Validate.
func LoadSession(projectPath string) (*canonical.CanonicalSession, error) {
	path := filepath.Join(Dir(projectPath), SessionFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s canonical.CanonicalSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := canonical.Validate(&s); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return &s, nil
}

// SaveResume writes doc to <projectPath>/.handoff/RESUME.md, creating
// the directory if needed.
func SaveResume(projectPath, doc string) error {
	dir := Dir(projectPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, ResumeFileName)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
