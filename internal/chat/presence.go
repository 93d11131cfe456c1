package chat

import "log/slog"

// Presence publishes the online count. It keeps no state of its own: the
// count is always the Registry's membership size, announced once per
// effective Admit or Evict.
type Presence struct {
	registry *Registry
	bus      *Bus
	log      *slog.Logger
}

// NewPresence hooks a Presence counter onto registry.
func NewPresence(registry *Registry, bus *Bus, log *slog.Logger) *Presence {
	p := &Presence{registry: registry, bus: bus, log: log}
	registry.onChange = p.announce
	return p
}

// Count returns the current number of authenticated sessions.
func (p *Presence) Count() int {
	return p.registry.Count()
}

func (p *Presence) announce(count int, members []*Session) {
	payload, err := Encode(Outbound{Type: EventOnlineCount, Data: count})
	if err != nil {
		p.log.Error("Encoding online count", "error", err)
		return
	}
	delivered := p.bus.fanout(members, payload, nil)
	p.log.Debug("Online count announced", "count", count, "delivered", delivered)
}
