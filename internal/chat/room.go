package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room ties the shared chat state together and hands out Sessions.
type Room struct {
	log          *slog.Logger
	store        MessageStore
	verifier     Verifier
	registry     *Registry
	bus          *Bus
	presence     *Presence
	typing       *TypingRelay
	historyLimit int
	now          func() time.Time

	// publishMu orders appends against history replays so that a session
	// being admitted sees every message once, in history or as a broadcast.
	publishMu sync.Mutex
}

// Option customizes a Room.
type Option func(*Room)

// WithHistoryLimit sets how many messages are replayed after authentication.
// Values above DefaultHistoryLimit are capped.
func WithHistoryLimit(limit int) Option {
	return func(r *Room) {
		if limit > 0 {
			r.historyLimit = min(limit, DefaultHistoryLimit)
		}
	}
}

// WithClock replaces time.Now for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(r *Room) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRoom builds a Room persisting to store and authenticating with verifier.
func NewRoom(log *slog.Logger, store MessageStore, verifier Verifier, opts ...Option) *Room {
	registry := NewRegistry()
	bus := NewBus(registry, log)
	r := &Room{
		log:          log,
		store:        store,
		verifier:     verifier,
		registry:     registry,
		bus:          bus,
		presence:     NewPresence(registry, bus, log),
		typing:       NewTypingRelay(bus),
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a Pending session writing to out.
func (r *Room) Open(out Outbox, remote string) *Session {
	id := uuid.NewString()
	return &Session{
		id:    id,
		room:  r,
		out:   out,
		log:   r.log.With("session", id, "remote", remote),
		state: StatePending,
	}
}

// Online returns the number of authenticated sessions.
func (r *Room) Online() int {
	return r.presence.Count()
}

// Registry exposes the session registry.
func (r *Room) Registry() *Registry {
	return r.registry
}

// Bus exposes the broadcast bus.
func (r *Room) Bus() *Bus {
	return r.bus
}

// admit commits a verified identity: registry membership, presence
// broadcast, then the private history replay.
func (r *Room) admit(ctx context.Context, s *Session, identity Identity) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	history, historyErr := r.store.Recent(ctx, r.historyLimit)

	s.mu.Lock()
	if s.state != StatePending {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.identity = identity
	s.state = StateAuthenticated
	s.log = s.log.With("user", identity.Username)
	s.reply(Outbound{Type: EventAuthenticated, Data: AuthenticatedPayload{User: identity}})
	r.registry.Admit(s)
	s.mu.Unlock()

	s.log.Info("Session authenticated", "online", r.registry.Count())

	if historyErr != nil {
		s.reply(errorEvent(CodeHistoryUnavailable, "Chat history is unavailable"))
		return fmt.Errorf("%w: recent: %v", ErrPersistence, historyErr)
	}
	if history == nil {
		history = []ChatMessage{}
	}
	s.reply(Outbound{Type: EventHistory, Data: history})
	return nil
}

// publish persists a draft and broadcasts the stored message to everyone,
// the author included. Nothing is broadcast when persistence fails.
func (r *Room) publish(ctx context.Context, s *Session, draft Draft) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	msg, err := r.store.Append(ctx, draft)
	if err != nil {
		s.reply(errorEvent(CodePersistenceFailed, "Message could not be saved"))
		return fmt.Errorf("%w: append: %v", ErrPersistence, err)
	}

	delivered := r.bus.BroadcastAll(Outbound{Type: EventMessage, Data: msg})
	s.log.Debug("Message broadcast", "id", msg.ID, "delivered", delivered)
	return nil
}
