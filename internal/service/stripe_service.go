package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"app/internal/config"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeService sells credit packages through Stripe Checkout. Packages are
// one-time payments, not subscriptions; the paid credits land on the balance
// when the checkout.session.completed webhook arrives.
type StripeService struct {
	cfg     *config.Config
	credits CreditService
	logger  zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(cfg *config.Config, credits CreditService, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, credits: credits, logger: lg}
}

// CreateCheckoutSession creates a Checkout session for one credit package and
// returns its URL. The user id and package ride along in metadata so the
// webhook can credit the right balance.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID string, packageID int64) (string, error) {
	pkg, err := s.credits.GetPackage(ctx, packageID)
	if err != nil {
		s.logger.Error().Err(err).Int64("package_id", packageID).Msg("Failed to fetch credit package")
		return "", fmt.Errorf("fetch package: %w", err)
	}
	if pkg == nil {
		return "", fmt.Errorf("unknown package: %d", packageID)
	}
	if pkg.StripePriceID == "" {
		return "", fmt.Errorf("package %d has no price configured", packageID)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(pkg.StripePriceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:          stripe.String(s.cfg.CheckoutCancelURL),
		Metadata: map[string]string{
			"user_id":    userID,
			"package_id": strconv.FormatInt(pkg.ID, 10),
			"credits":    strconv.Itoa(pkg.Credits),
		},
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Int64("package_id", packageID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook processes Stripe webhook events.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			http.Error(w, "invalid checkout.session data", http.StatusBadRequest)
			return
		}
		userID := cs.Metadata["user_id"]
		if userID == "" {
			s.logger.Error().Str("session_id", cs.ID).Msg("Missing user_id in checkout session metadata")
			http.Error(w, "missing user_id in metadata", http.StatusBadRequest)
			return
		}
		credits, err := strconv.Atoi(cs.Metadata["credits"])
		if err != nil || credits <= 0 {
			s.logger.Error().Str("session_id", cs.ID).Str("credits", cs.Metadata["credits"]).Msg("Invalid credits in checkout session metadata")
			http.Error(w, "invalid credits in metadata", http.StatusBadRequest)
			return
		}

		description := "Credit purchase"
		if pkgID := cs.Metadata["package_id"]; pkgID != "" {
			description = "Credit purchase (package " + pkgID + ")"
		}
		if err := s.credits.Add(ctx, userID, credits, description); err != nil {
			// A non-2xx makes Stripe retry the event.
			s.logger.Error().Err(err).Str("user_id", userID).Int("credits", credits).Msg("Failed to credit purchase")
			http.Error(w, "failed to credit purchase", http.StatusInternalServerError)
			return
		}
		s.logger.Info().Str("user_id", userID).Int("credits", credits).Msg("Purchase credited")
	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	w.WriteHeader(http.StatusOK)
}
