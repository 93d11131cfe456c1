package chat

import (
	"encoding/json"
	"fmt"
)

// EventType names an event carried over the channel.
type EventType string

// Client to server.
const (
	EventAuthenticate EventType = "authenticate"
	EventSendMessage  EventType = "send-message"
	EventTyping       EventType = "typing"
)

// Server to client.
const (
	EventAuthFailed    EventType = "auth-failed"
	EventAuthenticated EventType = "authenticated"
	EventHistory       EventType = "history"
	EventMessage       EventType = "message"
	EventUserTyping    EventType = "user-typing"
	EventOnlineCount   EventType = "online-count"
	EventError         EventType = "error"
)

// Error codes sent in an error event.
const (
	CodeUnauthenticated      = "unauthenticated"
	CodeAlreadyAuthenticated = "already_authenticated"
	CodePersistenceFailed    = "persistence_failed"
	CodeHistoryUnavailable   = "history_unavailable"
	CodeBadRequest           = "bad_request"
)

// Inbound is the envelope of every client frame. The authenticate payload is
// the bare token string; history is a bare array of ChatMessage and
// online-count a bare integer.
type Inbound struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope of every server frame.
type Outbound struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

type AuthFailedPayload struct {
	Message string `json:"message"`
}

type AuthenticatedPayload struct {
	User Identity `json:"user"`
}

type UserTypingPayload struct {
	Username string `json:"username"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeInbound parses a raw client frame.
func DecodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if in.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrBadRequest)
	}
	return in, nil
}

// decodeData unmarshals the payload of in into v. An absent payload leaves v
// at its zero value.
func decodeData(in Inbound, v any) error {
	if len(in.Data) == 0 || string(in.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrBadRequest, in.Type, err)
	}
	return nil
}

// Encode serializes an outbound event into a single frame.
func Encode(evt Outbound) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	return payload, nil
}

func errorEvent(code, message string) Outbound {
	return Outbound{Type: EventError, Data: ErrorPayload{Code: code, Message: message}}
}
