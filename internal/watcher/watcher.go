// Package watcher polls the registered adapters on a fixed cadence,
// diffing each session's message count tick over tick to surface
// new-session, session-update, rate-limit, and idle events. It
// replaces the teacher's fsnotify-based tiered watcher: partial JSONL
// writes make filesystem-change events noisy, and the rate-limit
// heuristic only needs a message-count diff, so a single ticker is
// simpler and strictly sufficient.
package watcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/canonical"
)

// EventType classifies one emitted Event.
type EventType string

const (
	EventNewSession     EventType = "new-session"
	EventSessionUpdate  EventType = "session-update"
	EventRateLimit      EventType = "rate-limit"
	EventIdle           EventType = "idle"
)

// Event is emitted once per observed state transition during a tick.
type Event struct {
	Type         EventType
	Source       canonical.Source
	SessionID    string
	OldCount     int
	NewCount     int
	At           time.Time
}

// DefaultInterval is the polling cadence when Options.Interval is zero.
const DefaultInterval = 30 * time.Second

// Options configures a Watcher.
type Options struct {
	Agents      []adapter.Adapter
	Interval    time.Duration
	ProjectPath string
	OnEvent     func(Event)
}

// sessionState is the per-session-key tracking record held between ticks.
type sessionState struct {
	messageCount       int
	lastCheckedAt      time.Time
	lastChangedAt      time.Time
	unchangedIntervals int
	hadGrowth          bool
	rateLimitEmitted   bool
}

// Watcher runs a single-threaded cooperative polling loop. Only one
// Start may be active at a time; Stop is idempotent.
type Watcher struct {
	mu       sync.Mutex
	opts     Options
	ticker   *time.Ticker
	stop     chan struct{}
	done     chan struct{}
	running  bool
	states   map[string]*sessionState
	lastTick time.Time
}

// New creates a Watcher from opts. Interval defaults to DefaultInterval
// when unset.
func New(opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Watcher{
		opts:   opts,
		states: make(map[string]*sessionState),
	}
}

// Start begins the polling loop. Calling Start on an already-running
// Watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ticker = time.NewTicker(w.opts.Interval)
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx)
}

// Stop halts the polling loop and waits for the in-flight tick, if
// any, to finish. Safe to call even if Start was never called.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	ticker := w.ticker
	stop := w.stop
	done := w.done
	w.mu.Unlock()

	close(stop)
	if ticker != nil {
		ticker.Stop()
	}
	<-done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-w.ticker.C:
			w.tick(ctx)
		}
	}
}

// tick performs one snapshot-and-diff cycle, invoking OnEvent
// synchronously for each emitted event in iteration order. A panic or
// error from OnEvent (recovered here) never aborts the loop.
func (w *Watcher) tick(ctx context.Context) {
	now := time.Now()
	seenKeys := make(map[string]bool)
	var events []Event

	w.mu.Lock()
	for _, a := range w.opts.Agents {
		sessions, err := a.ListSessions(ctx, w.opts.ProjectPath)
		if err != nil {
			continue // adapter exception: skip this agent for this tick
		}
		for _, sess := range sessions {
			key := sessionKey(a.ID(), sess.ID)
			seenKeys[key] = true
			events = append(events, w.diffSession(key, a.ID(), sess, now)...)
		}
	}

	for key := range w.states {
		if !seenKeys[key] {
			delete(w.states, key)
		}
	}
	w.mu.Unlock()

	if len(events) == 0 && len(w.opts.Agents) > 0 {
		events = append(events, Event{Type: EventIdle, At: now})
	}

	w.emit(events)
}

func (w *Watcher) diffSession(key string, source canonical.Source, sess canonical.SessionInfo, now time.Time) []Event {
	prev, ok := w.states[key]
	if !ok {
		w.states[key] = &sessionState{
			messageCount:  sess.MessageCount,
			lastCheckedAt: now,
			lastChangedAt: now,
		}
		return []Event{{Type: EventNewSession, Source: source, SessionID: sess.ID, NewCount: sess.MessageCount, At: now}}
	}

	var out []Event
	switch {
	case sess.MessageCount > prev.messageCount:
		out = append(out, Event{
			Type: EventSessionUpdate, Source: source, SessionID: sess.ID,
			OldCount: prev.messageCount, NewCount: sess.MessageCount, At: now,
		})
		prev.lastChangedAt = now
		prev.unchangedIntervals = 0
		prev.hadGrowth = true
		prev.rateLimitEmitted = false
	case sess.MessageCount < prev.messageCount:
		out = append(out, Event{
			Type: EventSessionUpdate, Source: source, SessionID: sess.ID,
			OldCount: prev.messageCount, NewCount: sess.MessageCount, At: now,
		})
		prev.hadGrowth = false
		prev.rateLimitEmitted = false
	default:
		prev.unchangedIntervals++
		if prev.unchangedIntervals >= 2 && sess.MessageCount > 0 && prev.hadGrowth && !prev.rateLimitEmitted {
			out = append(out, Event{Type: EventRateLimit, Source: source, SessionID: sess.ID, NewCount: sess.MessageCount, At: now})
			prev.rateLimitEmitted = true
		}
	}
	prev.messageCount = sess.MessageCount
	prev.lastCheckedAt = now
	return out
}

func (w *Watcher) emit(events []Event) {
	if w.opts.OnEvent == nil {
		return
	}
	for _, ev := range events {
		w.safeInvoke(ev)
	}
}

func (w *Watcher) safeInvoke(ev Event) {
	defer func() {
		_ = recover() // a misbehaving handler must not abort the loop
	}()
	w.opts.OnEvent(ev)
}

func sessionKey(source canonical.Source, sessionID string) string {
	return string(source) + ":" + sessionID
}

// Stats reports how many sessions are currently tracked, for
// diagnostics (mirrors the teacher's tiered-manager Stats shape, now
// trivial since there is only one tier).
func (w *Watcher) Stats() (tracked int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.states)
}

// TrackedSessionKeys returns the currently tracked session keys,
// sorted, for deterministic inspection in tests and diagnostics.
func (w *Watcher) TrackedSessionKeys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, len(w.states))
	for k := range w.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
