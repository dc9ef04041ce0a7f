package telegram

import (
	"context"
	"sync"
)

type cancelEntry struct {
	cancel context.CancelFunc
}

// cancelTracker keys in-flight long-running work (voice transcription)
// by user, so /cancel can abort it. At most one entry per user: starting
// a new one cancels whatever was running before.
type cancelTracker struct {
	mu      sync.Mutex
	entries map[int64]*cancelEntry
}

func newCancelTracker() *cancelTracker {
	return &cancelTracker{entries: make(map[int64]*cancelEntry)}
}

// track derives a cancellable context for the user's work. The returned
// release must be called when the work ends; it drops the entry only if
// it is still the current one.
func (t *cancelTracker) track(userID int64, parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	e := &cancelEntry{cancel: cancel}

	t.mu.Lock()
	if prev, ok := t.entries[userID]; ok {
		prev.cancel()
	}
	t.entries[userID] = e
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		if t.entries[userID] == e {
			delete(t.entries, userID)
		}
		t.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// cancel aborts the user's in-flight work, if any.
func (t *cancelTracker) cancel(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return false
	}
	e.cancel()
	delete(t.entries, userID)
	return true
}
