package auth_test

import (
	"testing"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestTokens_Round_Trip(t *testing.T) {
	req := require.New(t)
	tokens := auth.NewTokens(secret, time.Hour)

	token, err := tokens.Generate(auth.User{ID: "u-1", Username: "alice"})
	req.NoError(err)

	claims, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal("u-1", claims.UserID)
	req.Equal("alice", claims.Username)
	req.WithinDuration(time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokens_Rejects_Expired_And_Foreign_Tokens(t *testing.T) {
	req := require.New(t)

	expired, err := auth.NewTokens(secret, -time.Minute).Generate(auth.User{ID: "u-1", Username: "alice"})
	req.NoError(err)
	_, err = auth.NewTokens(secret, time.Hour).Validate(expired)
	req.ErrorIs(err, auth.ErrInvalidToken)

	foreign, err := auth.NewTokens("another-secret-9876543210", time.Hour).Generate(auth.User{ID: "u-1", Username: "alice"})
	req.NoError(err)
	_, err = auth.NewTokens(secret, time.Hour).Validate(foreign)
	req.ErrorIs(err, auth.ErrInvalidToken)
}

func TestPassword_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := auth.HashPassword("s3cret!")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	ok, err := auth.ComparePassword("s3cret!", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = auth.ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(ok)

	_, err = auth.ComparePassword("s3cret!", "plain-text")
	req.Error(err)
}
