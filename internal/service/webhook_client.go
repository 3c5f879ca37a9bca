package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrWebhookTimeout marks a generation call that hit the client-side
// cancellation bound. It is reported separately from generic failures.
var ErrWebhookTimeout = errors.New("generation webhook timed out")

// GenerationRequest is the JSON body posted to the generation webhook.
type GenerationRequest struct {
	Prompt  string `json:"prompt"`
	Image   string `json:"image"`
	Video   string `json:"video"`
	Quality string `json:"quality"`
}

type generationResponse struct {
	OutputURL string `json:"output_url"`
}

// GenerationClient invokes the external webhook that performs the actual
// motion-transfer render. The caller bounds the call with a context timeout.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type webhookClient struct {
	url       string
	authToken string
	client    *http.Client
	logger    zerolog.Logger
}

// NewWebhookClient returns a GenerationClient against the given endpoint.
func NewWebhookClient(url, authToken string, logger zerolog.Logger) GenerationClient {
	return &webhookClient{
		url:       url,
		authToken: authToken,
		client: &http.Client{
			// No client timeout - renders are long-running and the caller
			// already bounds the call through its context.
		},
		logger: logger.With().Str("service", "WebhookClient").Logger(),
	}
}

// Generate posts the request and returns the output video URL. A non-2xx
// status, a malformed body, or a missing output URL are hard failures; a
// context deadline surfaces as ErrWebhookTimeout.
func (c *webhookClient) Generate(ctx context.Context, genReq GenerationRequest) (string, error) {
	jsonBody, err := json.Marshal(genReq)
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Error().Msg("Generation webhook exceeded its deadline")
			return "", ErrWebhookTimeout
		}
		return "", fmt.Errorf("calling generation webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from webhook")
			return "", fmt.Errorf("generation webhook returned status %d", resp.StatusCode)
		}
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(bodyBytes)).
			Msg("Generation webhook returned error")
		return "", fmt.Errorf("generation webhook returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var genResp generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrWebhookTimeout
		}
		return "", fmt.Errorf("decoding webhook response: %w", err)
	}
	if genResp.OutputURL == "" {
		return "", fmt.Errorf("webhook response missing output_url field")
	}
	return genResp.OutputURL, nil
}
