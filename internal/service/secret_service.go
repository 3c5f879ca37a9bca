package service

import (
	"context"
	"fmt"

	"app/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretService resolves production secrets from Secret Manager.
type SecretService interface {
	// GetSecret returns the latest version of the named secret.
	GetSecret(ctx context.Context, name string) (string, error)
	// ResolveConfig overwrites config values whose secret names are set.
	ResolveConfig(ctx context.Context, cfg *config.Config) error
	Close() error
}

type secretService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretService(ctx context.Context, cfg *config.Config) (SecretService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretService{client: client, projectID: cfg.GCPProjectID}, nil
}

func (s *secretService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

// ResolveConfig replaces the webhook token and Stripe key with their Secret
// Manager values when the corresponding secret names are configured.
func (s *secretService) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	if cfg.WebhookTokenSecretName != "" {
		token, err := s.GetSecret(ctx, cfg.WebhookTokenSecretName)
		if err != nil {
			return err
		}
		cfg.WebhookAuthToken = token
	}
	if cfg.StripeKeySecretName != "" {
		key, err := s.GetSecret(ctx, cfg.StripeKeySecretName)
		if err != nil {
			return err
		}
		cfg.StripeSecretKey = key
	}
	return nil
}

func (s *secretService) Close() error {
	return s.client.Close()
}
