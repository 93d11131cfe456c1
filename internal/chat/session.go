package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StatePending State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is the state machine of one connection. Its transport feeds it one
// inbound event at a time; Close may be called from any goroutine.
type Session struct {
	id   string
	room *Room
	out  Outbox

	mu           sync.Mutex
	log          *slog.Logger
	state        State
	identity     Identity
	lastTypingAt time.Time
}

// ID returns the connection-unique session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns who the session authenticated as; the zero value while
// Pending.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// LastTypingAt returns when the session last relayed a typing signal.
func (s *Session) LastTypingAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTypingAt
}

// HandleFrame decodes a raw client frame and processes it. Malformed frames
// are answered with a bad_request error event.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) error {
	if s.State() == StateClosed {
		return nil
	}
	in, err := DecodeInbound(raw)
	if err != nil {
		s.reply(errorEvent(CodeBadRequest, "Malformed event"))
		return err
	}
	return s.Handle(ctx, in)
}

// Handle processes one inbound event. Every input is a no-op once Closed.
func (s *Session) Handle(ctx context.Context, in Inbound) error {
	if s.State() == StateClosed {
		return nil
	}

	switch in.Type {
	case EventAuthenticate:
		var token string
		if err := decodeData(in, &token); err != nil {
			s.reply(errorEvent(CodeBadRequest, "Malformed authenticate payload"))
			return err
		}
		return s.Authenticate(ctx, token)
	case EventSendMessage:
		var p SendMessagePayload
		if err := decodeData(in, &p); err != nil {
			s.reply(errorEvent(CodeBadRequest, "Malformed send-message payload"))
			return err
		}
		return s.SendMessage(ctx, p.Text)
	case EventTyping:
		return s.Typing()
	default:
		s.reply(errorEvent(CodeBadRequest, fmt.Sprintf("Unknown event %q", in.Type)))
		return fmt.Errorf("%w: unknown event %q", ErrBadRequest, in.Type)
	}
}

// Authenticate verifies token and, on success, admits the session. A failed
// verification leaves the session Pending so the client may retry.
func (s *Session) Authenticate(ctx context.Context, token string) error {
	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateAuthenticated:
		s.reply(errorEvent(CodeAlreadyAuthenticated, "Already authenticated"))
		return nil
	}

	identity, err := s.room.verifier.Verify(ctx, token)
	if err != nil {
		if s.State() == StateClosed {
			return ErrSessionClosed
		}
		message := "Authentication is temporarily unavailable"
		if errors.Is(err, ErrAuthentication) {
			message = "Invalid or expired token"
		}
		s.reply(Outbound{Type: EventAuthFailed, Data: AuthFailedPayload{Message: message}})
		s.logger().Info("Authentication failed", "error", err)
		if errors.Is(err, ErrAuthentication) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	return s.room.admit(ctx, s, identity)
}

// SendMessage validates text, persists it and broadcasts the stored message.
// Invalid text is dropped without telling anyone.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	state, identity := s.state, s.identity
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return nil
	case StatePending:
		s.reply(errorEvent(CodeUnauthenticated, "Authenticate before sending messages"))
		return ErrUnauthenticated
	}

	normalized, err := NormalizeText(text)
	if err != nil {
		s.logger().Debug("Message rejected", "error", err)
		return err
	}

	return s.room.publish(ctx, s, Draft{
		UserID:   identity.UserID,
		Username: identity.Username,
		Text:     normalized,
	})
}

// Typing relays a typing signal to every other authenticated session.
func (s *Session) Typing() error {
	s.mu.Lock()
	state := s.state
	if state == StateAuthenticated {
		s.lastTypingAt = s.room.now()
	}
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return nil
	case StatePending:
		s.reply(errorEvent(CodeUnauthenticated, "Authenticate before sending typing signals"))
		return ErrUnauthenticated
	}

	s.room.typing.Relay(s)
	return nil
}

// Close moves the session to Closed and evicts it if it was admitted. It is
// idempotent and reports whether this call performed the transition.
func (s *Session) Close() bool {
	s.mu.Lock()
	prev := s.state
	s.state = StateClosed
	s.mu.Unlock()

	if prev == StateClosed {
		return false
	}
	if prev == StateAuthenticated && s.room.registry.Evict(s) {
		s.logger().Info("Session closed", "online", s.room.registry.Count())
	}
	return true
}

func (s *Session) logger() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// reply sends evt to this connection only.
func (s *Session) reply(evt Outbound) {
	payload, err := Encode(evt)
	if err != nil {
		s.room.log.Error("Dropping reply", "session", s.id, "error", err)
		return
	}
	if err := s.out.Deliver(payload); err != nil {
		s.room.log.Debug("Reply dropped", "session", s.id, "event", evt.Type, "error", err)
	}
}
