package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, username, email, password_hash, created_at`

func (s *Store) CreateUser(ctx context.Context, user core.User) (core.User, error) {
	const q = `INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	created, err := scanUser(s.pool.QueryRow(ctx, q,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt))
	if isUniqueViolation(err) {
		return core.User{}, core.ErrUsernameTaken
	}
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, username))
	if err != nil {
		return core.User{}, notFound(err, "get user by username")
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return core.User{}, notFound(err, "get user")
	}
	return u, nil
}

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateToken(ctx context.Context, token core.Token) error {
	const q = `INSERT INTO auth_tokens (key, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`

	expires := pgtype.Timestamptz{Time: token.ExpiresAt, Valid: !token.ExpiresAt.IsZero()}
	if _, err := s.pool.Exec(ctx, q, token.Key, token.UserID, token.CreatedAt, expires); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, key string) (core.Token, error) {
	const q = `SELECT key, user_id, created_at, expires_at FROM auth_tokens WHERE key = $1`

	var (
		t       core.Token
		expires pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, q, key).Scan(&t.Key, &t.UserID, &t.CreatedAt, &expires)
	if err != nil {
		return core.Token{}, notFound(err, "get token")
	}
	if expires.Valid {
		t.ExpiresAt = expires.Time
	}
	return t, nil
}

func (s *Store) DeleteToken(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete token: %w", core.ErrNotFound)
	}
	return nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM auth_tokens WHERE expires_at IS NOT NULL AND expires_at <= $1`

	tag, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
