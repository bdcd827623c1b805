// Package user manages accounts and the opaque bearer tokens that
// authenticate them.
package user

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// User is a registered account. Usernames are stored lowercase and are
// unique case-insensitively. The first registered user becomes admin.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	ErrUsernameTaken      = StoreError("Username is already taken")
	ErrInvalidCredentials = StoreError("Invalid username or password")
)

// PostgresStore implements account persistence over PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Register creates an account. The username is trimmed and lowercased;
// the first account in an empty store gets admin rights.
func (s *PostgresStore) Register(ctx context.Context, username, password string) (*User, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	if normalized == "" {
		return nil, ErrInvalidCredentials
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var taken bool
	if err := tx.GetContext(ctx, &taken, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", normalized); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	var hasAdmin bool
	if err := tx.GetContext(ctx, &hasAdmin, "SELECT EXISTS (SELECT 1 FROM users WHERE is_admin)"); err != nil {
		return nil, fmt.Errorf("failed to check for admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var u User
	err = tx.QueryRowxContext(ctx,
		"INSERT INTO users (username, password_hash, is_admin) VALUES ($1, $2, $3) RETURNING id, username, is_admin, created_at",
		normalized, hash, !hasAdmin).StructScan(&u)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user: %w", err)
	}
	return &u, nil
}

// Login verifies credentials and issues a fresh opaque token.
func (s *PostgresStore) Login(ctx context.Context, username, password string) (string, *User, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))

	var u User
	var hash string
	err := s.db.QueryRowxContext(ctx,
		"SELECT id, username, is_admin, created_at, password_hash FROM users WHERE username = $1",
		normalized).Scan(&u.ID, &u.Username, &u.IsAdmin, &u.CreatedAt, &hash)
	if err == sql.ErrNoRows {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !VerifyPassword(password, hash) {
		return "", nil, ErrInvalidCredentials
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	_, err = s.db.ExecContext(ctx, "INSERT INTO auth_tokens (user_id, token) VALUES ($1, $2)", u.ID, token)
	if err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, &u, nil
}

// ByToken resolves a token to its user, or (nil, nil) for an unknown
// token. With touch set, the token's last_seen_at is refreshed.
func (s *PostgresStore) ByToken(ctx context.Context, token string, touch bool) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT u.id, u.username, u.is_admin, u.created_at
		 FROM auth_tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.token = $1`, token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	if touch {
		_, err = s.db.ExecContext(ctx, "UPDATE auth_tokens SET last_seen_at = NOW() WHERE token = $1", token)
		if err != nil {
			return nil, fmt.Errorf("failed to touch token: %w", err)
		}
	}
	return &u, nil
}

// DeleteToken revokes a token. Revoking an unknown token is a no-op.
func (s *PostgresStore) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE token = $1", token); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
