package certwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client observes the external certificate-automation daemon. Certificate
// issuance and renewal happen entirely out of process; this client only polls
// status and schedules work.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type CertificateStatus struct {
	Domain    string     `json:"domain"`
	Status    string     `json:"status"`
	Issuer    string     `json:"issuer,omitempty"`
	IssuedAt  *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Status reports issuance state for one hostname. A nil status with nil error
// means the daemon does not track the hostname yet.
func (c *Client) Status(ctx context.Context, hostname string) (*CertificateStatus, error) {
	url := fmt.Sprintf("%s/api/certificates/%s", c.baseURL, hostname)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch certificate status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("certificate daemon error: %s - %s", resp.Status, string(body))
	}

	var status CertificateStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode certificate status: %w", err)
	}

	return &status, nil
}

// ScheduleRenewAll asks the daemon to queue a renewal sweep over every
// tracked certificate. The sweep itself runs asynchronously.
func (c *Client) ScheduleRenewAll(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/api/renewals", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to schedule renewals: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("certificate daemon error: %s - %s", resp.Status, string(body))
	}

	return true, nil
}
