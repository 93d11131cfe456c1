package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTextLength is the number of characters kept from a submitted message.
	MaxTextLength = 500
	// DefaultHistoryLimit bounds the history replayed after authentication.
	DefaultHistoryLimit = 50
)

// ChatMessage is a persisted chat message. ID and CreatedAt are assigned by
// the MessageStore and are authoritative over anything a client sent.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"-"`
}

// Draft is a validated message on its way to the MessageStore.
type Draft struct {
	UserID   string
	Username string
	Text     string
}

// NormalizeText truncates raw to MaxTextLength characters and trims the
// result. It returns ErrInvalidText when nothing is left.
func NormalizeText(raw string) (string, error) {
	text := raw
	if utf8.RuneCountInString(text) > MaxTextLength {
		runes := []rune(text)
		text = string(runes[:MaxTextLength])
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty after trimming", ErrInvalidText)
	}
	return text, nil
}
