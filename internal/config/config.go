package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`

	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTLMin  int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`
	RefreshTokenTTLHrs int    `envconfig:"REFRESH_TOKEN_TTL_HOURS" default:"720"`

	// S3-compatible storage (Supabase Storage in production)
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`
	// Public base URL for uploaded objects. When empty, object keys are
	// resolved against S3URL.
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	// Generation webhook settings
	WebhookURL        string `envconfig:"GENERATION_WEBHOOK_URL" required:"true"`
	WebhookAuthToken  string `envconfig:"GENERATION_WEBHOOK_TOKEN"`
	WebhookTimeoutMin int    `envconfig:"GENERATION_WEBHOOK_TIMEOUT_MIN" default:"15"`

	// Generation limits
	MaxVideoDurationSec int `envconfig:"MAX_VIDEO_DURATION_SEC" default:"30"`
	WelcomeCredits      int `envconfig:"WELCOME_CREDITS" default:"10"`

	// Google OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectURL   string `envconfig:"OAUTH_REDIRECT_URL"`
	// Where the browser lands after a completed OAuth exchange.
	AppOriginURL string `envconfig:"APP_ORIGIN_URL" default:"http://localhost:3000"`

	// Stripe
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL  string `envconfig:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL   string `envconfig:"CHECKOUT_CANCEL_URL"`

	// Realtime change-event bus
	GCPProjectID            string `envconfig:"GCP_PROJECT_ID"`
	ChangeEventTopic        string `envconfig:"CHANGE_EVENT_TOPIC" default:"change-events"`
	ChangeEventSubscription string `envconfig:"CHANGE_EVENT_SUBSCRIPTION" default:"change-events-api"`

	// Secret Manager resolution for production secrets. When a secret name
	// is set, its latest version overrides the corresponding env value.
	WebhookTokenSecretName string `envconfig:"GENERATION_WEBHOOK_TOKEN_SECRET"`
	StripeKeySecretName    string `envconfig:"STRIPE_SECRET_KEY_SECRET"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
