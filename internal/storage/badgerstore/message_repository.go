package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

type diskMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// messageKey orders messages by ID: big-endian IDs sort bytewise.
func messageKey(id uint64) []byte {
	key := make([]byte, len(messagePrefix)+8)
	copy(key, messagePrefix)
	binary.BigEndian.PutUint64(key[len(messagePrefix):], id)
	return key
}

// Append persists draft under the next sequence ID and stamps it with the
// store clock.
func (s *Store) Append(ctx context.Context, draft chat.Draft) (chat.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return chat.ChatMessage{}, err
	}

	n, err := s.seq.Next()
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("next message id: %w", err)
	}
	id := n + 1

	dm := diskMessage{
		ID:        int64(id),
		UserID:    draft.UserID,
		Username:  draft.Username,
		Text:      draft.Text,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(dm)
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("encode message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(id), data)
	})
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("store message %d: %w", id, err)
	}
	return toChatMessage(dm), nil
}

// Recent returns the newest limit messages, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]chat.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []chat.ChatMessage{}, nil
	}

	prefix := []byte(messagePrefix)
	messages := make([]chat.ChatMessage, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = limit
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, 8)...)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(v, &dm); err != nil {
					return fmt.Errorf("decode message: %w", err)
				}
				messages = append(messages, toChatMessage(dm))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func toChatMessage(dm diskMessage) chat.ChatMessage {
	return chat.ChatMessage{
		ID:        dm.ID,
		Text:      dm.Text,
		Username:  dm.Username,
		UserID:    dm.UserID,
		CreatedAt: dm.CreatedAt,
	}
}
