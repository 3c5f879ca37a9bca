package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound indicates the refresh token does not map to a session.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists refresh tokens so sessions survive restarts.
type SessionRepository interface {
	Save(ctx context.Context, s model.Session) error
	Find(ctx context.Context, refreshToken string) (*model.Session, error)
	Delete(ctx context.Context, refreshToken string) error
}

type sessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo creates a new SessionRepository.
func NewSessionRepo(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) Save(ctx context.Context, s model.Session) error {
	const q = `
        INSERT INTO sessions (refresh_token, user_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (refresh_token)
        DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
    `
	if _, err := r.pool.Exec(ctx, q, s.RefreshToken, s.UserID, s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("saving session for user %s: %w", s.UserID, err)
	}
	return nil
}

func (r *sessionRepo) Find(ctx context.Context, refreshToken string) (*model.Session, error) {
	const q = `
        SELECT refresh_token, user_id, expires_at
        FROM sessions
        WHERE refresh_token = $1
    `
	var s model.Session
	err := r.pool.QueryRow(ctx, q, refreshToken).Scan(&s.RefreshToken, &s.UserID, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	return &s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, refreshToken string) error {
	const q = `DELETE FROM sessions WHERE refresh_token = $1`
	tag, err := r.pool.Exec(ctx, q, refreshToken)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
