package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CreditHandler serves balances, packages, the ledger and checkout.
type CreditHandler struct {
	creditService service.CreditService
	stripeService *service.StripeService
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(creditService service.CreditService, stripeService *service.StripeService, v *validator.Validate, logger zerolog.Logger) *CreditHandler {
	return &CreditHandler{creditService: creditService, stripeService: stripeService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 credit routes. The Stripe webhook is mounted
// separately at the root router since Stripe cannot send a bearer token.
func (h *CreditHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/credits/balance", authMw(http.HandlerFunc(h.getBalance)))
	mux.Handle("/credits/packages", authMw(http.HandlerFunc(h.listPackages)))
	mux.Handle("/credits/transactions", authMw(http.HandlerFunc(h.listTransactions)))
	mux.Handle("/credits/checkout", authMw(http.HandlerFunc(h.checkout)))
}

func (h *CreditHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	balance, err := h.creditService.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to fetch balance")
		http.Error(w, "failed to fetch balance", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponseDTO{
		Credits:   balance.Credits,
		UpdatedAt: balance.UpdatedAt,
	})
}

func (h *CreditHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	packages, err := h.creditService.ListPackages(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list packages")
		http.Error(w, "failed to list packages", http.StatusInternalServerError)
		return
	}

	resp := make([]dto.PackageResponseDTO, 0, len(packages))
	for _, p := range packages {
		resp = append(resp, dto.PackageResponseDTO{
			ID:          p.ID,
			Name:        p.Name,
			Credits:     p.Credits,
			PriceCents:  p.PriceCents,
			Description: p.Description,
			Features:    p.Features,
			IsPopular:   p.IsPopular,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CreditHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	txs, err := h.creditService.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list transactions")
		http.Error(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}

	resp := make([]dto.TransactionResponseDTO, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, dto.TransactionResponseDTO{
			ID:          tx.ID,
			Amount:      tx.Amount,
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CreditHandler) checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.CheckoutCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	url, err := h.stripeService.CreateCheckoutSession(r.Context(), userID, req.PackageID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create checkout session")
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckoutResponseDTO{URL: url})
}
