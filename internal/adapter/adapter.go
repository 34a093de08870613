// Package adapter defines the per-source adapter contract: discover,
// enumerate, and normalize a single assistant's on-disk session
// storage into a canonical.CanonicalSession.
package adapter

import (
	"context"

	"github.com/Kushalwho/handoff/internal/canonical"
)

// Adapter is implemented once per supported AI coding assistant.
type Adapter interface {
	// ID returns the source tag this adapter speaks for.
	ID() canonical.Source

	// Detect is a pure check for whether this source is plausibly
	// installed on this host. Never returns an error; an adapter that
	// cannot tell says false.
	Detect() bool

	// ListSessions returns sessions sorted by lastActiveAt, most recent
	// first, with sessions lacking lastActiveAt last; startedAt plays no
	// part in the order. projectPath may be empty to
	// mean "all projects". A transient failure reading one session
	// must not fail the whole call; skip and continue.
	ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error)

	// Capture fully normalizes one session by id.
	Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error)

	// CaptureLatest is listSessions(projectPath) then capture(list[0]).
	CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error)
}

// captureLatestHelper implements the convenience operation described in
// spec.md §4.1 in terms of ListSessions + Capture, so each concrete
// adapter need only provide those two.
func captureLatestHelper(ctx context.Context, a Adapter, projectPath string) (*canonical.CanonicalSession, error) {
	sessions, err := a.ListSessions(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return a.Capture(ctx, sessions[0].ID)
}

// CaptureLatest is the shared convenience-operation implementation.
// Concrete adapters call this from their own CaptureLatest method
// (Go has no default interface method bodies), passing themselves.
func CaptureLatest(ctx context.Context, a Adapter, projectPath string) (*canonical.CanonicalSession, error) {
	return captureLatestHelper(ctx, a, projectPath)
}
