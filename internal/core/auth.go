package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// tokenBytes yields a 40 character hex key.
const tokenBytes = 20

// Session is the result of a successful register or login.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Register creates an account and issues its first token.
func (s *Service) Register(ctx context.Context, username, email, password string) (Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return Session{}, ValidationError{Field: "username", Message: "required field is empty"}
	}
	if len(password) < MinPasswordLength {
		return Session{}, ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}
	if len(password) > MaxPasswordBytes {
		return Session{}, ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes),
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return s.issueToken(ctx, user)
}

// Login verifies credentials and issues a new token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Session{}, ValidationError{Message: "username and password required"}
	}

	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login failed", "username", user.Username)
		return Session{}, ErrInvalidCredentials
	}

	return s.issueToken(ctx, user)
}

// Logout revokes a token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, key string) error {
	if err := s.store.DeleteToken(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Authenticate resolves a token key to its user.
// Missing, unknown, and expired tokens return ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, key string) (User, error) {
	if key == "" {
		return User{}, ErrUnauthorized
	}

	tok, err := s.store.GetToken(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrUnauthorized
	}
	if err != nil {
		return User{}, fmt.Errorf("get token: %w", err)
	}
	if tok.Expired(s.now()) {
		return User{}, ErrUnauthorized
	}

	user, err := s.store.GetUser(ctx, tok.UserID)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrUnauthorized
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// PurgeExpiredTokens deletes tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredTokens(ctx, s.now())
}

func (s *Service) issueToken(ctx context.Context, user User) (Session, error) {
	key, err := newTokenKey()
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	tok := Token{Key: key, UserID: user.ID, CreatedAt: now}
	if s.tokenTTL > 0 {
		tok.ExpiresAt = now.Add(s.tokenTTL)
	}

	if err := s.store.CreateToken(ctx, tok); err != nil {
		return Session{}, fmt.Errorf("create token: %w", err)
	}
	return Session{User: user, Token: key}, nil
}

func newTokenKey() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// nowFunc is replaced in tests.
type nowFunc func() time.Time
