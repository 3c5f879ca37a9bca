package dto

import "time"

// SignUpDTO is used for incoming signup requests
type SignUpDTO struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// LoginDTO is used for incoming login requests
type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshDTO carries a refresh token for rotation or logout
type RefreshDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponseDTO is returned after a successful authentication
type TokenResponseDTO struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
	User         *UserResponseDTO `json:"user,omitempty"`
}
