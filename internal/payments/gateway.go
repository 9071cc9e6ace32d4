package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// GatewayClient talks to the external settlement authority over HTTP. Card
// charges and insurance claims go through the same gateway on different
// endpoints.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGatewayClient creates a settlement gateway client.
func NewGatewayClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *GatewayClient {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *GatewayClient) WithHTTPClient(hc *http.Client) *GatewayClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

type settleRequest struct {
	Reference   string `json:"reference"`
	PatientID   string `json:"patient_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type settleResponse struct {
	Status string `json:"status"` // "accepted" or "declined"
	Reason string `json:"reason,omitempty"`
}

// Settle posts one settlement request to the given gateway endpoint and maps
// the response to an Outcome. Transport failures surface as
// ErrGatewayUnavailable so callers can distinguish them from declines.
func (c *GatewayClient) Settle(ctx context.Context, endpoint string, pc Context) (Outcome, error) {
	if c.baseURL == "" {
		return OutcomeFailed, fmt.Errorf("payments: %w: gateway not configured", ErrGatewayUnavailable)
	}

	body, err := json.Marshal(settleRequest{
		Reference:   pc.AppointmentID,
		PatientID:   pc.PatientID,
		AmountCents: pc.AmountCents,
		Currency:    "usd",
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("payments: marshal settle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("payments: build settle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("payments: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("payments: read settle response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return OutcomeFailed, fmt.Errorf("payments: %w: gateway returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed settleResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return OutcomeFailed, fmt.Errorf("payments: decode settle response: %w", err)
	}

	if resp.StatusCode == http.StatusOK && parsed.Status == "accepted" {
		return OutcomePaid, nil
	}

	c.logger.Warn("settlement declined",
		"reference", pc.AppointmentID,
		"status_code", resp.StatusCode,
		"reason", parsed.Reason,
	)
	return OutcomeFailed, nil
}
