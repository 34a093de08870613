package adapter

import "errors"

// Error taxonomy surfaced by adapters (spec.md §7). Transient and
// Unavailable failures are never surfaced — they are swallowed at the
// lowest layer that can continue making progress — so they have no
// sentinel here.
var (
	// ErrNotFound: requested session id or project has no data.
	ErrNotFound = errors.New("adapter: session not found")

	// ErrMalformed: storage exists but its bytes violate the expected
	// format beyond per-line tolerance, or validation failed.
	ErrMalformed = errors.New("adapter: malformed session data")

	// ErrLocked: the underlying store cannot be opened read-only,
	// typically because the source assistant holds an exclusive lock.
	ErrLocked = errors.New("adapter: storage is locked, close the source app and retry")
)
