// Package storage selects the persistence backend for messages and accounts.
package storage

import (
	"context"
	"log/slog"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/Placeboguy/anonymous-chat2/internal/storage/badgerstore"
	"github.com/Placeboguy/anonymous-chat2/internal/storage/pgstore"
)

// Backend persists both chat messages and user accounts.
type Backend interface {
	chat.MessageStore
	auth.UserRepository
	Close() error
}

var (
	_ Backend = (*badgerstore.Store)(nil)
	_ Backend = (*pgstore.Store)(nil)
)

// Open returns a PostgreSQL backend when databaseURL is set and an embedded
// Badger backend under dataDir otherwise.
func Open(ctx context.Context, databaseURL, dataDir string, log *slog.Logger) (Backend, error) {
	if databaseURL != "" {
		log.Info("Using PostgreSQL storage")
		store, err := pgstore.Open(ctx, databaseURL, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	log.Info("Using Badger storage", "dir", dataDir)
	store, err := badgerstore.Open(dataDir, log)
	if err != nil {
		return nil, err
	}
	return store, nil
}
