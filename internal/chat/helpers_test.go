package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// outbox records every frame delivered to one connection.
type outbox struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (o *outbox) Deliver(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return fmt.Errorf("%w: connection gone", chat.ErrDelivery)
	}
	o.frames = append(o.frames, append([]byte(nil), payload...))
	return nil
}

type frame struct {
	Type chat.EventType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (o *outbox) all(t *testing.T) []frame {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]frame, 0, len(o.frames))
	for _, raw := range o.frames {
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func (o *outbox) ofType(t *testing.T, typ chat.EventType) []frame {
	t.Helper()
	var out []frame
	for _, f := range o.all(t) {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (o *outbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = nil
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func onlineCounts(t *testing.T, o *outbox) []int {
	t.Helper()
	var counts []int
	for _, f := range o.ofType(t, chat.EventOnlineCount) {
		counts = append(counts, decode[int](t, f))
	}
	return counts
}

// memoryStore is an in-process MessageStore with a fixed clock.
type memoryStore struct {
	mu       sync.Mutex
	messages []chat.ChatMessage
	nextID   int64
}

func (m *memoryStore) Append(_ context.Context, d chat.Draft) (chat.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg := chat.ChatMessage{
		ID:        m.nextID,
		Text:      d.Text,
		Username:  d.Username,
		UserID:    d.UserID,
		CreatedAt: fixedNow.Add(time.Duration(m.nextID) * time.Second),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memoryStore) Recent(_ context.Context, limit int) ([]chat.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.messages) - limit
	if start < 0 {
		start = 0
	}
	return append([]chat.ChatMessage(nil), m.messages[start:]...), nil
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// tokenVerifier accepts "token-<name>" and rejects everything else.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (chat.Identity, error) {
	var name string
	if _, err := fmt.Sscanf(token, "token-%s", &name); err != nil || name == "" {
		return chat.Identity{}, fmt.Errorf("%w: unknown token", chat.ErrAuthentication)
	}
	return chat.Identity{UserID: "id-" + name, Username: name}, nil
}

func newRoom(store chat.MessageStore, opts ...chat.Option) *chat.Room {
	return chat.NewRoom(slog.New(slog.DiscardHandler), store, tokenVerifier{}, opts...)
}

// join opens a session for name and authenticates it.
func join(t *testing.T, room *chat.Room, name string) (*chat.Session, *outbox) {
	t.Helper()
	out := &outbox{}
	s := room.Open(out, "127.0.0.1:0")
	require.NoError(t, s.Authenticate(context.Background(), "token-"+name))
	require.Equal(t, chat.StateAuthenticated, s.State())
	return s, out
}
