package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
)

// LoginResult is the outcome of a successful Login.
type LoginResult struct {
	Token   string
	User    User
	Created bool
}

// Service is the credential store: it logs users in, registers unknown
// usernames on first login, and verifies the session tokens it issued.
type Service struct {
	users  UserRepository
	tokens *Tokens
	log    *slog.Logger
}

// NewService builds a Service over users signing with tokens.
func NewService(users UserRepository, tokens *Tokens, log *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, log: log}
}

// Login authenticates username/password. An unknown username is registered
// with the given password; a known username with the wrong password fails
// with ErrInvalidCredentials and never creates an account.
func (s *Service) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	creds = creds.Normalize()
	if err := ValidateCredentials(creds); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.FindByUsername(ctx, creds.Username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return s.register(ctx, creds)
	case err != nil:
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	return s.signIn(user, creds.Password)
}

func (s *Service) register(ctx context.Context, creds Credentials) (LoginResult, error) {
	hash, err := HashPassword(creds.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, creds.Username, hash)
	if errors.Is(err, ErrUserExists) {
		// Lost a registration race; treat it as a login against the winner.
		existing, findErr := s.users.FindByUsername(ctx, creds.Username)
		if findErr != nil {
			return LoginResult{}, fmt.Errorf("find user: %w", findErr)
		}
		return s.signIn(existing, creds.Password)
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Info("User registered", "user", user.Username, "id", user.ID)
	return LoginResult{Token: token, User: user, Created: true}, nil
}

func (s *Service) signIn(user User, password string) (LoginResult, error) {
	match, err := ComparePassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}

// Verify implements chat.Verifier. Tokens that fail validation, or whose
// user no longer exists, are reported as chat.ErrAuthentication.
func (s *Service) Verify(ctx context.Context, token string) (chat.Identity, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", chat.ErrAuthentication, err)
	}

	user, err := s.users.FindByUsername(ctx, claims.Username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return chat.Identity{}, fmt.Errorf("%w: %v", chat.ErrAuthentication, err)
	case err != nil:
		return chat.Identity{}, fmt.Errorf("find user: %w", err)
	}
	if user.ID != claims.UserID {
		return chat.Identity{}, fmt.Errorf("%w: %v", chat.ErrAuthentication, ErrInvalidToken)
	}

	return chat.Identity{UserID: user.ID, Username: user.Username}, nil
}
