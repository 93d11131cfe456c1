package chat

// TypingRelay forwards typing signals to every peer of the sender. It does
// no coalescing: each signal produces exactly one fan-out.
type TypingRelay struct {
	bus *Bus
}

// NewTypingRelay returns a relay publishing through bus.
func NewTypingRelay(bus *Bus) *TypingRelay {
	return &TypingRelay{bus: bus}
}

// Relay announces that from is typing to everyone else.
func (t *TypingRelay) Relay(from *Session) int {
	evt := Outbound{Type: EventUserTyping, Data: UserTypingPayload{Username: from.Identity().Username}}
	return t.bus.BroadcastExcept(evt, from)
}
