package chat

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the live set of authenticated sessions. All operations are
// linearizable: a Count observed after Admit returns reflects that Admit.
type Registry struct {
	mu       sync.RWMutex
	members  map[*Session]struct{}
	onChange func(count int, members []*Session)
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[*Session]struct{})}
}

// Admit adds s to the registry. It reports false when s was already present.
func (r *Registry) Admit(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[s]; ok {
		return false
	}
	r.members[s] = struct{}{}
	r.changedLocked()
	return true
}

// Evict removes s from the registry. It reports false when s was absent.
func (r *Registry) Evict(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[s]; !ok {
		return false
	}
	delete(r.members, s)
	r.changedLocked()
	return true
}

// Count returns the number of admitted sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Contains reports whether s is currently admitted.
func (r *Registry) Contains(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[s]
	return ok
}

// ForEach calls fn for every admitted session while membership is held
// stable. fn must not call back into the Registry.
func (r *Registry) ForEach(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for s := range r.members {
		fn(s)
	}
}

// changedLocked runs the membership observer with the post-change view.
// Callers hold the write lock, so observers see changes in mutation order.
func (r *Registry) changedLocked() {
	if r.onChange == nil {
		return
	}
	r.onChange(len(r.members), lo.Keys(r.members))
}
