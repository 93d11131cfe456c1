package chat

import (
	"log/slog"

	"github.com/samber/lo"
)

// Bus fans events out to the sessions of a Registry.
//
// Delivery is best-effort per connection: a session whose outbox refuses the
// frame is logged and skipped, the others still receive it. Frames are queued
// on each outbox in the order the Bus issues them.
type Bus struct {
	registry *Registry
	log      *slog.Logger
}

// NewBus returns a Bus delivering to the members of registry.
func NewBus(registry *Registry, log *slog.Logger) *Bus {
	return &Bus{registry: registry, log: log}
}

// BroadcastAll delivers evt to every admitted session and returns how many
// accepted it.
func (b *Bus) BroadcastAll(evt Outbound) int {
	return b.BroadcastExcept(evt, nil)
}

// BroadcastExcept delivers evt to every admitted session other than excluded.
func (b *Bus) BroadcastExcept(evt Outbound, excluded *Session) int {
	payload, err := Encode(evt)
	if err != nil {
		b.log.Error("Dropping broadcast", "event", evt.Type, "error", err)
		return 0
	}

	delivered := 0
	b.registry.ForEach(func(s *Session) {
		if s == excluded {
			return
		}
		if b.deliver(s, payload) {
			delivered++
		}
	})
	return delivered
}

// fanout delivers a pre-encoded frame to an explicit target list.
func (b *Bus) fanout(targets []*Session, payload []byte, excluded *Session) int {
	targets = lo.Filter(targets, func(s *Session, _ int) bool {
		return s != excluded
	})
	return len(lo.Filter(targets, func(s *Session, _ int) bool {
		return b.deliver(s, payload)
	}))
}

func (b *Bus) deliver(s *Session, payload []byte) bool {
	if err := s.out.Deliver(payload); err != nil {
		b.log.Debug("Delivery dropped", "session", s.id, "error", err)
		return false
	}
	return true
}
