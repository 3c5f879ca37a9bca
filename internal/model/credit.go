package model

import "time"

// Balance is the integer credit count available to a user. It is only ever
// mutated through CreditRepository.SpendCredits and AddCredits.
type Balance struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Credits   int       `db:"credits" json:"credits"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreditTransaction is one entry in the audit ledger. Amount is negative for
// spends and positive for purchases and grants.
type CreditTransaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Amount      int       `db:"amount" json:"amount"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreditPackage is a static catalog entry offered for purchase.
type CreditPackage struct {
	ID            int64    `db:"id" json:"id"`
	Name          string   `db:"name" json:"name"`
	Credits       int      `db:"credits" json:"credits"`
	PriceCents    int      `db:"price_cents" json:"price_cents"`
	Description   string   `db:"description" json:"description"`
	Features      []string `db:"features" json:"features"`
	IsPopular     bool     `db:"is_popular" json:"is_popular"`
	StripePriceID string   `db:"stripe_price_id" json:"-"`
}
