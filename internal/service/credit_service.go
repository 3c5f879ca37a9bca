package service

import (
	"context"
	"fmt"

	"app/internal/model"
	"app/internal/realtime"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// CreditService fronts every balance read and mutation. Mutations go through
// the repository's atomic operations and announce themselves on the change
// bus so subscribed dashboards re-fetch.
type CreditService interface {
	GetBalance(ctx context.Context, userID string) (*model.Balance, error)
	// Spend returns false, without error, when the balance is insufficient.
	Spend(ctx context.Context, userID string, amount int, description string) (bool, error)
	Add(ctx context.Context, userID string, amount int, description string) error
	ListPackages(ctx context.Context) ([]model.CreditPackage, error)
	GetPackage(ctx context.Context, packageID int64) (*model.CreditPackage, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error)
}

type creditService struct {
	repo      repository.CreditRepository
	publisher realtime.Publisher
	logger    zerolog.Logger
}

// NewCreditService creates a new CreditService.
func NewCreditService(repo repository.CreditRepository, publisher realtime.Publisher, logger zerolog.Logger) CreditService {
	return &creditService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("service", "CreditService").Logger(),
	}
}

func (s *creditService) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *creditService) Spend(ctx context.Context, userID string, amount int, description string) (bool, error) {
	ok, err := s.repo.SpendCredits(ctx, userID, amount, description)
	if err != nil {
		return false, fmt.Errorf("spend credits: %w", err)
	}
	if ok {
		s.notifyBalanceChange(ctx, userID)
	}
	return ok, nil
}

func (s *creditService) Add(ctx context.Context, userID string, amount int, description string) error {
	if err := s.repo.AddCredits(ctx, userID, amount, description); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	s.notifyBalanceChange(ctx, userID)
	return nil
}

func (s *creditService) ListPackages(ctx context.Context) ([]model.CreditPackage, error) {
	return s.repo.ListPackages(ctx)
}

func (s *creditService) GetPackage(ctx context.Context, packageID int64) (*model.CreditPackage, error) {
	return s.repo.GetPackageByID(ctx, packageID)
}

func (s *creditService) ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit)
}

// notifyBalanceChange is best-effort: the balance is already committed, and
// a missed event only delays the dashboard until the next re-fetch.
func (s *creditService) notifyBalanceChange(ctx context.Context, userID string) {
	if err := s.publisher.PublishChange(ctx, realtime.KindBalance, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to publish balance change event")
	}
}
