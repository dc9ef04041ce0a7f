package telegram

import (
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

// conversationState marks what the next plain-text message from a user
// means. Anything other than stateNone intercepts the intake pipeline.
type conversationState int

const (
	stateNone conversationState = iota
	stateAwaitingAuthCode
	stateAwaitingTimezone
)

// statePromptTTL bounds how long a pending prompt stays armed. A stale
// prompt silently expires so an unrelated message typed days later is
// treated as a task, not as an auth code.
const statePromptTTL = 10 * time.Minute

type stateEntry struct {
	state    conversationState
	deadline time.Time
}

type stateTracker struct {
	mu      sync.Mutex
	entries map[int64]stateEntry
	clk     clock.Clock
}

func newStateTracker(clk clock.Clock) *stateTracker {
	if clk == nil {
		clk = clock.New()
	}
	return &stateTracker{entries: make(map[int64]stateEntry), clk: clk}
}

func (t *stateTracker) set(userID int64, s conversationState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == stateNone {
		delete(t.entries, userID)
		return
	}
	t.entries[userID] = stateEntry{state: s, deadline: t.clk.Now().Add(statePromptTTL)}
}

// get returns the user's pending state, expiring it lazily.
func (t *stateTracker) get(userID int64) conversationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return stateNone
	}
	if t.clk.Now().After(e.deadline) {
		delete(t.entries, userID)
		return stateNone
	}
	return e.state
}

func (t *stateTracker) clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
}
