package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

func userKey(username string) []byte {
	return []byte(userPrefix + username)
}

// FindByUsername loads the account registered under username.
func (s *Store) FindByUsername(ctx context.Context, username string) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}

	var user auth.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &user)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("find user %q: %w", username, err)
	}
	return user, nil
}

// Create registers a new account. The existence check and the write share a
// transaction; a concurrent registration of the same name surfaces as a
// conflict and is reported as auth.ErrUserExists.
func (s *Store) Create(ctx context.Context, username, passwordHash string) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}

	user := auth.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return auth.User{}, fmt.Errorf("encode user: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(username))
		switch {
		case err == nil:
			return auth.ErrUserExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(userKey(username), data)
	})
	switch {
	case errors.Is(err, auth.ErrUserExists), errors.Is(err, badger.ErrConflict):
		return auth.User{}, auth.ErrUserExists
	case err != nil:
		return auth.User{}, fmt.Errorf("create user %q: %w", username, err)
	}
	return user, nil
}
