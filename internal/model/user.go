package model

import "time"

// User represents an authenticated identity and its profile.
// OAuthProvider is empty for credential accounts.
type User struct {
	UserID        string    `db:"user_id" json:"user_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	OAuthProvider string    `db:"oauth_provider" json:"oauth_provider,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Session is a stored refresh token. Access tokens are stateless JWTs and
// never persisted.
type Session struct {
	RefreshToken string    `db:"refresh_token"`
	UserID       string    `db:"user_id"`
	ExpiresAt    time.Time `db:"expires_at"`
}
