package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/Placeboguy/anonymous-chat2/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const secret = "test-secret-0123456789"

func newService(t *testing.T) (*auth.Service, *mocks.MockUserRepository, *auth.Tokens) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	tokens := auth.NewTokens(secret, 24*time.Hour)
	return auth.NewService(repo, tokens, slog.New(slog.DiscardHandler)), repo, tokens
}

func storedUser(t *testing.T, id, username, password string) auth.User {
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return auth.User{ID: id, Username: username, PasswordHash: hash}
}

func TestService_Login(t *testing.T) {
	t.Run("should register an unknown username", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newService(t)

		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(auth.User{}, auth.ErrUserNotFound)
		repo.EXPECT().Create(gomock.Any(), "alice", gomock.Any()).
			DoAndReturn(func(_ context.Context, username, hash string) (auth.User, error) {
				ok, err := auth.ComparePassword("secret1", hash)
				req.NoError(err)
				req.True(ok)
				return auth.User{ID: "u-1", Username: username, PasswordHash: hash}, nil
			})

		res, err := svc.Login(context.Background(), auth.Credentials{Username: "  alice ", Password: "secret1"})
		req.NoError(err)
		req.True(res.Created)
		req.Equal("u-1", res.User.ID)

		claims, err := tokens.Validate(res.Token)
		req.NoError(err)
		req.Equal("u-1", claims.UserID)
		req.Equal("alice", claims.Username)
	})

	t.Run("should log in an existing user with the right password", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newService(t)
		user := storedUser(t, "u-2", "bob", "hunter22")

		repo.EXPECT().FindByUsername(gomock.Any(), "bob").Return(user, nil)
		repo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		res, err := svc.Login(context.Background(), auth.Credentials{Username: "bob", Password: "hunter22"})
		req.NoError(err)
		req.False(res.Created)
		req.Equal(user.ID, res.User.ID)
		req.NotEmpty(res.Token)
	})

	t.Run("should never create an account on a wrong password", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newService(t)
		user := storedUser(t, "u-3", "carol", "correct-horse")

		repo.EXPECT().FindByUsername(gomock.Any(), "carol").Return(user, nil)
		repo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Login(context.Background(), auth.Credentials{Username: "carol", Password: "battery-staple"})
		req.ErrorIs(err, auth.ErrInvalidCredentials)
	})

	t.Run("should reject malformed credentials before touching storage", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newService(t)
		repo.EXPECT().FindByUsername(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Login(context.Background(), auth.Credentials{Username: "x", Password: "123"})
		req.ErrorIs(err, auth.ErrInvalidInput)

		_, err = svc.Login(context.Background(), auth.Credentials{Username: "   ", Password: "longenough"})
		req.ErrorIs(err, auth.ErrInvalidInput)
	})

	t.Run("should fall back to login when registration races", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newService(t)
		winner := storedUser(t, "u-4", "dave", "password1")

		gomock.InOrder(
			repo.EXPECT().FindByUsername(gomock.Any(), "dave").Return(auth.User{}, auth.ErrUserNotFound),
			repo.EXPECT().Create(gomock.Any(), "dave", gomock.Any()).Return(auth.User{}, auth.ErrUserExists),
			repo.EXPECT().FindByUsername(gomock.Any(), "dave").Return(winner, nil),
		)

		res, err := svc.Login(context.Background(), auth.Credentials{Username: "dave", Password: "password1"})
		req.NoError(err)
		req.False(res.Created)
		req.Equal("u-4", res.User.ID)
	})

	t.Run("should surface storage errors", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newService(t)
		boom := errors.New("connection refused")
		repo.EXPECT().FindByUsername(gomock.Any(), "erin").Return(auth.User{}, boom)

		_, err := svc.Login(context.Background(), auth.Credentials{Username: "erin", Password: "password1"})
		req.ErrorIs(err, boom)
		req.NotErrorIs(err, auth.ErrInvalidCredentials)
	})
}

func TestService_Verify(t *testing.T) {
	t.Run("should resolve a valid token to an identity", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newService(t)
		user := auth.User{ID: "u-1", Username: "alice"}
		token, err := tokens.Generate(user)
		req.NoError(err)

		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user, nil)

		identity, err := svc.Verify(context.Background(), token)
		req.NoError(err)
		req.Equal(chat.Identity{UserID: "u-1", Username: "alice"}, identity)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		req := require.New(t)
		svc, _, _ := newService(t)
		_, err := svc.Verify(context.Background(), "not-a-jwt")
		req.ErrorIs(err, chat.ErrAuthentication)
	})

	t.Run("should reject a token for a user that no longer matches", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newService(t)
		token, err := tokens.Generate(auth.User{ID: "old-id", Username: "alice"})
		req.NoError(err)

		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(auth.User{ID: "new-id", Username: "alice"}, nil)

		_, err = svc.Verify(context.Background(), token)
		req.ErrorIs(err, chat.ErrAuthentication)
	})

	t.Run("should reject a token for a deleted user", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newService(t)
		token, err := tokens.Generate(auth.User{ID: "u-9", Username: "ghost"})
		req.NoError(err)

		repo.EXPECT().FindByUsername(gomock.Any(), "ghost").Return(auth.User{}, auth.ErrUserNotFound)

		_, err = svc.Verify(context.Background(), token)
		req.ErrorIs(err, chat.ErrAuthentication)
	})
}
