// Package cliexit maps the adapter error taxonomy onto handoff's CLI
// exit codes (spec.md §6).
package cliexit

import (
	"errors"

	"github.com/Kushalwho/handoff/internal/adapter"
)

const (
	// OK: success.
	OK = 0
	// NoAgents: no agents detected, or an unknown source was named.
	NoAgents = 1
	// EnumerationFailed: session enumeration failed.
	EnumerationFailed = 2
	// CaptureFailed: capture/parse/resume error.
	CaptureFailed = 3
)

// ForCaptureError maps an error from Capture/CaptureLatest/resume to
// an exit code. nil maps to OK.
func ForCaptureError(err error) int {
	if err == nil {
		return OK
	}
	switch {
	case errors.Is(err, adapter.ErrNotFound):
		return CaptureFailed
	case errors.Is(err, adapter.ErrMalformed):
		return CaptureFailed
	case errors.Is(err, adapter.ErrLocked):
		return CaptureFailed
	default:
		return CaptureFailed
	}
}

// ForListError maps an error from ListSessions to an exit code. nil
// maps to OK.
func ForListError(err error) int {
	if err == nil {
		return OK
	}
	return EnumerationFailed
}

// ExitError carries an explicit process exit code alongside the
// error cobra prints, so main can choose os.Exit(code) instead of the
// blanket exit(1) cobra defaults to.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string { return e.Err.Error() }
func (e ExitError) Unwrap() error { return e.Err }

// New wraps err with an explicit exit code.
func New(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// CodeOf extracts the exit code from err, defaulting to
// CaptureFailed for an error that carries no explicit code (cobra
// command errors that were not constructed via New).
func CodeOf(err error) int {
	var ee ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return CaptureFailed
}
