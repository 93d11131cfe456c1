//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_chat_store.go -package=mocks
package chat

import "context"

// MessageStore is the durable, append-only message log.
//
// Append must be safe for concurrent use and must never hand out the same ID
// twice. Recent returns at most limit messages, oldest first.
type MessageStore interface {
	Append(ctx context.Context, draft Draft) (ChatMessage, error)
	Recent(ctx context.Context, limit int) ([]ChatMessage, error)
}

// Identity is who a session authenticated as.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

// Verifier turns the opaque token carried by an authenticate event into an
// Identity. Implementations return an error wrapping ErrAuthentication when
// the token is rejected.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Outbox is the per-connection delivery queue a Session writes to. Deliver
// must not block; it returns an error wrapping ErrDelivery when the payload
// cannot be queued.
type Outbox interface {
	Deliver(payload []byte) error
}
