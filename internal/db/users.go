package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// UserStore handles profile rows mirrored from the auth provider.
type UserStore struct {
	db     *DB
	logger *zap.Logger
}

func NewUserStore(db *DB, logger *zap.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, email, full_name, avatar_url, created_at, updated_at FROM users WHERE id = $1`

	u, err := scanUser(s.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return u, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, full_name, avatar_url, created_at, updated_at FROM users WHERE email = $1`

	u, err := scanUser(s.db.Pool().QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}

	return u, nil
}

// Create inserts a new user row. Duplicate emails are left untouched so
// contact imports can be re-run.
func (s *UserStore) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, full_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`

	_, err := s.db.Pool().Exec(ctx, query, u.ID, u.Email, u.FullName, u.AvatarURL)
	if err != nil {
		s.logger.Error("failed to create user",
			zap.Error(err),
			zap.String("email", u.Email),
		)
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// UpdateProfile writes the editable profile fields.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, avatarURL *string) error {
	query := `
		UPDATE users SET full_name = $1, avatar_url = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := s.db.Pool().Exec(ctx, query, fullName, avatarURL, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	return nil
}
