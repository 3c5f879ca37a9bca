package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrUserNotFound indicates the authenticated id has no profile row.
var ErrUserNotFound = errors.New("user not found")

// UserService exposes the settings-screen profile operations.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*model.User, error)
}

type userService struct {
	repo   repository.UserRepository
	logger zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, logger zerolog.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching profile %s: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*model.User, error) {
	user, err := s.repo.UpdateProfile(ctx, userID, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("updating profile %s: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	s.logger.Info().Str("userId", userID).Msg("Profile updated")
	return user, nil
}
