package watcher

import (
	"context"
	"sync"
	"testing"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/canonical"
)

type fakeAdapter struct {
	id       canonical.Source
	mu       sync.Mutex
	sessions []canonical.SessionInfo
	err      error
}

func (f *fakeAdapter) ID() canonical.Source { return f.id }
func (f *fakeAdapter) Detect() bool         { return true }

func (f *fakeAdapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]canonical.SessionInfo, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeAdapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	return nil, nil
}

func (f *fakeAdapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return nil, nil
}

func (f *fakeAdapter) setCount(id string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions[i].MessageCount = count
			return
		}
	}
	f.sessions = append(f.sessions, canonical.SessionInfo{ID: id, MessageCount: count})
}

func (f *fakeAdapter) removeSession(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sessions {
		if s.ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			return
		}
	}
}

func collectEvents(t *testing.T, w *Watcher) *[]Event {
	t.Helper()
	var events []Event
	w.opts.OnEvent = func(ev Event) { events = append(events, ev) }
	return &events
}

var _ adapter.Adapter = (*fakeAdapter)(nil)

func TestWatcher_FirstTickEmitsNewSession(t *testing.T) {
	fa := &fakeAdapter{id: canonical.SourceClaudeCode}
	fa.setCount("s1", 3)
	w := New(Options{Agents: []adapter.Adapter{fa}})
	events := collectEvents(t, w)

	w.tick(context.Background())

	if len(*events) != 1 || (*events)[0].Type != EventNewSession {
		t.Fatalf("expected one new-session event, got %v", *events)
	}
}

func TestWatcher_GrowthEmitsSessionUpdate(t *testing.T) {
	fa := &fakeAdapter{id: canonical.SourceClaudeCode}
	fa.setCount("s1", 3)
	w := New(Options{Agents: []adapter.Adapter{fa}})
	w.tick(context.Background())

	events := collectEvents(t, w)
	fa.setCount("s1", 5)
	w.tick(context.Background())

	if len(*events) != 1 || (*events)[0].Type != EventSessionUpdate {
		t.Fatalf("expected one session-update event, got %v", *events)
	}
	if (*events)[0].OldCount != 3 || (*events)[0].NewCount != 5 {
		t.Fatalf("unexpected counts: %+v", (*events)[0])
	}
}

func TestWatcher_RateLimitAfterTwoUnchangedTicksWithPriorGrowth(t *testing.T) {
	fa := &fakeAdapter{id: canonical.SourceClaudeCode}
	fa.setCount("s1", 3)
	w := New(Options{Agents: []adapter.Adapter{fa}})
	w.tick(context.Background()) // new-session

	fa.setCount("s1", 5)
	w.tick(context.Background()) // session-update, hadGrowth=true

	events := collectEvents(t, w)
	w.tick(context.Background()) // unchanged, interval 1 -> only idle
	if len(*events) != 1 || (*events)[0].Type != EventIdle {
		t.Fatalf("expected only an idle event on first unchanged tick, got %v", *events)
	}

	w.tick(context.Background()) // unchanged, interval 2 -> rate-limit
	if len(*events) != 2 || (*events)[1].Type != EventRateLimit {
		t.Fatalf("expected rate-limit event, got %v", *events)
	}

	w.tick(context.Background()) // already emitted, should not repeat -> idle
	if len(*events) != 3 || (*events)[2].Type != EventIdle {
		t.Fatalf("rate-limit should only fire once until next change, got %v", *events)
	}
}

func TestWatcher_IdleEmittedWhenNoEvents(t *testing.T) {
	fa := &fakeAdapter{id: canonical.SourceClaudeCode}
	w := New(Options{Agents: []adapter.Adapter{fa}})
	events := collectEvents(t, w)

	w.tick(context.Background())

	if len(*events) != 1 || (*events)[0].Type != EventIdle {
		t.Fatalf("expected idle event, got %v", *events)
	}
}

func TestWatcher_AdapterErrorSkipsTickWithoutEvent(t *testing.T) {
	fa := &fakeAdapter{id: canonical.SourceClaudeCode, err: context.DeadlineExceeded}
	w := New(Options{Agents: []adapter.Adapter{fa}})
	events := collectEvents(t, w)

	w.tick(context.Background())

	if len(*events) != 1 || (*events)[0].Type != EventIdle {
		t.Fatalf("adapter error should produce only the idle fallback, got %v", *events)
	}
}

func TestWatcher_DisappearedSessionDropsTrackingState(t *testing.T) {
	fa := &fakeAdapter{id: canonical.SourceClaudeCode}
	fa.setCount("s1", 3)
	w := New(Options{Agents: []adapter.Adapter{fa}})
	w.tick(context.Background())
	if got := w.Stats(); got != 1 {
		t.Fatalf("Stats() = %d, want 1", got)
	}

	fa.removeSession("s1")
	w.tick(context.Background())
	if got := w.Stats(); got != 0 {
		t.Fatalf("Stats() after disappearance = %d, want 0", got)
	}
}

func TestWatcher_StartStopIsIdempotent(t *testing.T) {
	w := New(Options{Agents: nil, Interval: 0})
	w.Start(context.Background())
	w.Start(context.Background()) // no-op, already running
	w.Stop()
	w.Stop() // no-op, already stopped
}
