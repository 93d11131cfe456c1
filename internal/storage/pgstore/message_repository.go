package pgstore

import (
	"context"
	"fmt"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/jackc/pgx/v5"
)

const (
	insertMessage = `
INSERT INTO messages (user_id, username, text)
VALUES ($1, $2, $3)
RETURNING id, created_at`

	selectRecentMessages = `
SELECT id, user_id, username, text, created_at
FROM (
    SELECT id, user_id, username, text, created_at
    FROM messages
    ORDER BY id DESC
    LIMIT $1
) recent
ORDER BY id ASC`
)

// Append inserts draft; the database assigns id and created_at.
func (s *Store) Append(ctx context.Context, draft chat.Draft) (chat.ChatMessage, error) {
	msg := chat.ChatMessage{
		Text:     draft.Text,
		Username: draft.Username,
		UserID:   draft.UserID,
	}
	err := s.pool.QueryRow(ctx, insertMessage, draft.UserID, draft.Username, draft.Text).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

// Recent returns the newest limit messages, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]chat.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, selectRecentMessages, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.ChatMessage, error) {
		var msg chat.ChatMessage
		err := row.Scan(&msg.ID, &msg.UserID, &msg.Username, &msg.Text, &msg.CreatedAt)
		msg.CreatedAt = msg.CreatedAt.UTC()
		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent messages: %w", err)
	}
	return messages, nil
}
