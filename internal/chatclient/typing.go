package chatclient

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// TypingTracker turns relayed user-typing events into a display state. A
// username is shown once and stays shown until window passes without a new
// signal from it.
type TypingTracker struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewTypingTracker returns a tracker clearing names after window of silence.
// A non-positive window means DefaultTypingInterval.
func NewTypingTracker(window time.Duration) *TypingTracker {
	if window <= 0 {
		window = DefaultTypingInterval
	}
	return &TypingTracker{window: window, now: time.Now, last: make(map[string]time.Time)}
}

// Seen records a typing signal from username and reports whether the
// indicator should be displayed, which is false while it is already shown.
func (t *TypingTracker) Seen(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	prev, shown := t.last[username]
	t.last[username] = now
	return !shown || now.Sub(prev) >= t.window
}

// Expire clears every name silent for the full window and returns them
// sorted.
func (t *TypingTracker) Expire() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	expired := lo.Keys(lo.PickBy(t.last, func(_ string, at time.Time) bool {
		return now.Sub(at) >= t.window
	}))
	for _, name := range expired {
		delete(t.last, name)
	}
	slices.Sort(expired)
	return expired
}

// Active returns the names currently shown as typing, sorted.
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := lo.Keys(t.last)
	slices.Sort(names)
	return names
}
