package dto

import "time"

// BalanceResponseDTO is returned for balance reads
type BalanceResponseDTO struct {
	Credits   int       `json:"credits"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PackageResponseDTO describes one purchasable credit package
type PackageResponseDTO struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Credits     int      `json:"credits"`
	PriceCents  int      `json:"price_cents"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	IsPopular   bool     `json:"is_popular"`
}

// CheckoutCreateDTO is used for incoming checkout requests
type CheckoutCreateDTO struct {
	PackageID int64 `json:"package_id" validate:"required"`
}

// CheckoutResponseDTO carries the hosted checkout URL
type CheckoutResponseDTO struct {
	URL string `json:"url"`
}

// TransactionResponseDTO is one ledger entry
type TransactionResponseDTO struct {
	ID          int64     `json:"id"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
