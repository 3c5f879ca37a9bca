package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreditRepository owns every balance mutation. Balances are never updated
// by direct field writes; SpendCredits and AddCredits are the only paths and
// both run in a serializable transaction together with their ledger entry.
type CreditRepository interface {
	GetBalance(ctx context.Context, userID string) (*model.Balance, error)
	// SpendCredits atomically checks sufficiency and decrements the balance.
	// It returns false, without error, when the balance is insufficient.
	SpendCredits(ctx context.Context, userID string, amount int, description string) (bool, error)
	// AddCredits atomically increments the balance, creating it when absent.
	AddCredits(ctx context.Context, userID string, amount int, description string) error
	ListPackages(ctx context.Context) ([]model.CreditPackage, error)
	GetPackageByID(ctx context.Context, packageID int64) (*model.CreditPackage, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error)
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

// GetBalance returns the user's balance, or a zero balance when no row
// exists yet.
func (r *creditRepo) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	const q = `
        SELECT user_id, credits, updated_at
        FROM user_balances
        WHERE user_id = $1
    `
	var b model.Balance
	err := r.pool.QueryRow(ctx, q, userID).Scan(&b.UserID, &b.Credits, &b.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &model.Balance{UserID: userID, Credits: 0}, nil
		}
		return nil, fmt.Errorf("fetch balance for user %s: %w", userID, err)
	}
	return &b, nil
}

// SpendCredits checks the balance and decrements it in one transaction.
func (r *creditRepo) SpendCredits(ctx context.Context, userID string, amount int, description string) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("spend amount must be positive, got %d", amount)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return false, fmt.Errorf("starting transaction for spend: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var credits int
	const balanceQ = `SELECT credits FROM user_balances WHERE user_id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, balanceQ, userID).Scan(&credits); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("reading balance for user %s: %w", userID, err)
	}
	if credits < amount {
		return false, nil
	}

	const updateQ = `UPDATE user_balances SET credits = credits - $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := tx.Exec(ctx, updateQ, userID, amount); err != nil {
		return false, fmt.Errorf("decrementing balance for user %s: %w", userID, err)
	}
	const ledgerQ = `INSERT INTO credit_transactions (user_id, amount, description) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, ledgerQ, userID, -amount, description); err != nil {
		return false, fmt.Errorf("recording spend for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing spend for user %s: %w", userID, err)
	}
	return true, nil
}

// AddCredits increments the balance and records the grant in one transaction.
func (r *creditRepo) AddCredits(ctx context.Context, userID string, amount int, description string) error {
	if amount <= 0 {
		return fmt.Errorf("add amount must be positive, got %d", amount)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("starting transaction for add: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const upsertQ = `
        INSERT INTO user_balances (user_id, credits, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (user_id)
        DO UPDATE SET credits = user_balances.credits + EXCLUDED.credits, updated_at = NOW()
    `
	if _, err := tx.Exec(ctx, upsertQ, userID, amount); err != nil {
		return fmt.Errorf("incrementing balance for user %s: %w", userID, err)
	}
	const ledgerQ = `INSERT INTO credit_transactions (user_id, amount, description) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, ledgerQ, userID, amount, description); err != nil {
		return fmt.Errorf("recording grant for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing grant for user %s: %w", userID, err)
	}
	return nil
}

// ListPackages returns the static catalog ordered by price ascending.
func (r *creditRepo) ListPackages(ctx context.Context) ([]model.CreditPackage, error) {
	const q = `
        SELECT id, name, credits, price_cents, description, features, is_popular, stripe_price_id
        FROM credit_packages
        ORDER BY price_cents ASC
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing credit packages: %w", err)
	}
	defer rows.Close()

	var packages []model.CreditPackage
	for rows.Next() {
		var p model.CreditPackage
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Credits,
			&p.PriceCents,
			&p.Description,
			&p.Features,
			&p.IsPopular,
			&p.StripePriceID,
		); err != nil {
			return nil, fmt.Errorf("scanning credit package: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing credit packages: %w", err)
	}
	if len(packages) == 0 {
		return []model.CreditPackage{}, nil
	}
	return packages, nil
}

// GetPackageByID returns one catalog entry, or nil when absent.
func (r *creditRepo) GetPackageByID(ctx context.Context, packageID int64) (*model.CreditPackage, error) {
	const q = `
        SELECT id, name, credits, price_cents, description, features, is_popular, stripe_price_id
        FROM credit_packages
        WHERE id = $1
    `
	var p model.CreditPackage
	err := r.pool.QueryRow(ctx, q, packageID).Scan(
		&p.ID,
		&p.Name,
		&p.Credits,
		&p.PriceCents,
		&p.Description,
		&p.Features,
		&p.IsPopular,
		&p.StripePriceID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch credit package %d: %w", packageID, err)
	}
	return &p, nil
}

// ListTransactions returns the most recent ledger entries for a user.
func (r *creditRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	const q = `
        SELECT id, user_id, amount, description, created_at
        FROM credit_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing transactions for user %s: %w", userID, err)
	}
	if len(txs) == 0 {
		return []model.CreditTransaction{}, nil
	}
	return txs, nil
}
