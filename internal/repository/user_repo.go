package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines methods for accessing identity profiles.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile changes the mutable profile fields; email is immutable.
	UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*model.User, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

// CreateUser inserts a new user row and fills in the generated timestamps.
func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	const q = `
        INSERT INTO users (user_id, first_name, last_name, email, password_hash, oauth_provider)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		u.UserID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.OAuthProvider,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user by id, or nil when no row exists.
func (r *userRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	const q = `
        SELECT user_id, first_name, last_name, email, password_hash, oauth_provider, created_at, updated_at
        FROM users
        WHERE user_id = $1
    `
	return r.scanUser(r.pool.QueryRow(ctx, q, userID), userID)
}

// GetUserByEmail retrieves a user by email, or nil when no row exists.
func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
        SELECT user_id, first_name, last_name, email, password_hash, oauth_provider, created_at, updated_at
        FROM users
        WHERE email = $1
    `
	return r.scanUser(r.pool.QueryRow(ctx, q, email), email)
}

// UpdateProfile saves the settings-screen fields and returns the fresh row.
func (r *userRepo) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*model.User, error) {
	const q = `
        UPDATE users
        SET first_name = $2, last_name = $3, updated_at = NOW()
        WHERE user_id = $1
        RETURNING user_id, first_name, last_name, email, password_hash, oauth_provider, created_at, updated_at
    `
	return r.scanUser(r.pool.QueryRow(ctx, q, userID, firstName, lastName), userID)
}

func (r *userRepo) scanUser(row pgx.Row, key string) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.UserID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.OAuthProvider,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", key, err)
	}
	return &u, nil
}
