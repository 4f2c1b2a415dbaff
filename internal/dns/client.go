package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shopfabric/backend/internal/domain"
)

const (
	defaultBaseURL    = "https://api.cloudflare.com/client/v4"
	errRequestFailed  = "request failed: %w"
	errDecodeResponse = "decode response: %w"
	errProviderAPI    = "provider API error: %v"

	recordTTLAuto = 1
)

// TokenSource supplies the provider API token and can mint a fresh one when
// the provider answers 401. A static token simply returns itself on refresh.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type StaticTokenSource struct {
	value string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{value: token}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error)   { return s.value, nil }
func (s *StaticTokenSource) Refresh(ctx context.Context) (string, error) { return s.value, nil }

// Client talks to the DNS provider's v4-style REST API for a single zone.
type Client struct {
	baseURL    string
	zoneID     string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu    sync.Mutex
	token string
}

type Config struct {
	BaseURL   string
	ZoneID    string
	Tokens    TokenSource
	RateLimit int
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := cfg.RateLimit
	if limit < 1 {
		limit = 1
	}

	return &Client{
		baseURL: baseURL,
		zoneID:  cfg.ZoneID,
		tokens:  cfg.Tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(limit), limit),
		logger:  logger.With("component", "dns"),
	}
}

// Record is the provider-agnostic view of one DNS record.
type Record struct {
	ID      string
	Type    string
	Name    string
	Content string
	Proxied bool
}

type apiRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type apiResponse[T any] struct {
	Success  bool         `json:"success"`
	Errors   []apiMessage `json:"errors"`
	Messages []apiMessage `json:"messages"`
	Result   T            `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// doRequest executes one provider call behind the rate limiter, with a single
// bounded retry after a token refresh when the provider answers 401. Both
// outcomes of the retry are terminal.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	c.logger.Warn("provider returned 401, refreshing token", "path", path)

	token, err := c.tokens.Refresh(ctx)
	if err != nil {
		return nil, &domain.CredentialError{Provider: "dns", Err: err}
	}
	c.setToken(token)

	resp, err = c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, &domain.CredentialError{Provider: "dns", Err: fmt.Errorf("token rejected after refresh")}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.currentToken(ctx))
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) currentToken(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" {
		if token, err := c.tokens.Token(ctx); err == nil {
			c.token = token
		}
	}
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type tokenInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// VerifyCredentials checks that the configured token is active and scoped for
// the zone.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/user/tokens/verify", nil)
	if err != nil {
		return &domain.CredentialError{Provider: "dns", Err: err}
	}
	defer resp.Body.Close()

	var result apiResponse[tokenInfo]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &domain.CredentialError{Provider: "dns", Err: fmt.Errorf(errDecodeResponse, err)}
	}

	if !result.Success {
		return &domain.CredentialError{Provider: "dns", Err: fmt.Errorf(errProviderAPI, result.Errors)}
	}

	if result.Result.Status != "active" {
		return &domain.CredentialError{Provider: "dns", Err: fmt.Errorf("token is not active: %s", result.Result.Status)}
	}

	return nil
}

// FindRecord looks up the A record for hostname in the zone. A nil record
// with nil error means the provider has no such record.
func (c *Client) FindRecord(ctx context.Context, hostname string) (*Record, error) {
	path := fmt.Sprintf("/zones/%s/dns_records?type=A&name=%s", c.zoneID, url.QueryEscape(hostname))

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, c.remoteErr("find_record", fmt.Errorf(errRequestFailed, err))
	}
	defer resp.Body.Close()

	var result apiResponse[[]apiRecord]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.remoteErr("find_record", fmt.Errorf(errDecodeResponse, err))
	}

	if !result.Success {
		return nil, c.remoteErr("find_record", fmt.Errorf(errProviderAPI, result.Errors))
	}

	for _, r := range result.Result {
		if r.Type == "A" && r.Name == hostname {
			return &Record{ID: r.ID, Type: r.Type, Name: r.Name, Content: r.Content, Proxied: r.Proxied}, nil
		}
	}

	return nil, nil
}

// EnsureRecord is idempotent: it updates an existing A record for hostname or
// creates one pointing at ip.
func (c *Client) EnsureRecord(ctx context.Context, hostname, ip string) (*Record, error) {
	existing, err := c.FindRecord(ctx, hostname)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Content == ip {
			c.logger.Info("DNS record already present", "record_id", existing.ID, "name", hostname)
			return existing, nil
		}
		return c.updateRecord(ctx, existing.ID, hostname, ip)
	}

	return c.createRecord(ctx, hostname, ip)
}

func (c *Client) createRecord(ctx context.Context, hostname, ip string) (*Record, error) {
	body, err := json.Marshal(apiRecord{
		Type:    "A",
		Name:    hostname,
		Content: ip,
		TTL:     recordTTLAuto,
		Proxied: false,
	})
	if err != nil {
		return nil, c.remoteErr("create_record", fmt.Errorf("marshal record: %w", err))
	}

	path := fmt.Sprintf("/zones/%s/dns_records", c.zoneID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, c.remoteErr("create_record", fmt.Errorf(errRequestFailed, err))
	}
	defer resp.Body.Close()

	var result apiResponse[apiRecord]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.remoteErr("create_record", fmt.Errorf(errDecodeResponse, err))
	}

	if !result.Success {
		return nil, c.remoteErr("create_record", fmt.Errorf(errProviderAPI, result.Errors))
	}

	c.logger.Info("DNS record created",
		"record_id", result.Result.ID,
		"name", hostname,
		"content", ip,
	)

	return &Record{
		ID:      result.Result.ID,
		Type:    result.Result.Type,
		Name:    result.Result.Name,
		Content: result.Result.Content,
		Proxied: result.Result.Proxied,
	}, nil
}

func (c *Client) updateRecord(ctx context.Context, recordID, hostname, ip string) (*Record, error) {
	body, err := json.Marshal(apiRecord{
		Type:    "A",
		Name:    hostname,
		Content: ip,
		TTL:     recordTTLAuto,
		Proxied: false,
	})
	if err != nil {
		return nil, c.remoteErr("update_record", fmt.Errorf("marshal record: %w", err))
	}

	path := fmt.Sprintf("/zones/%s/dns_records/%s", c.zoneID, recordID)
	resp, err := c.doRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		return nil, c.remoteErr("update_record", fmt.Errorf(errRequestFailed, err))
	}
	defer resp.Body.Close()

	var result apiResponse[apiRecord]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.remoteErr("update_record", fmt.Errorf(errDecodeResponse, err))
	}

	if !result.Success {
		return nil, c.remoteErr("update_record", fmt.Errorf(errProviderAPI, result.Errors))
	}

	c.logger.Info("DNS record updated", "record_id", recordID, "name", hostname, "content", ip)

	return &Record{
		ID:      result.Result.ID,
		Type:    result.Result.Type,
		Name:    result.Result.Name,
		Content: result.Result.Content,
		Proxied: result.Result.Proxied,
	}, nil
}

// DeleteRecord removes a record by provider ID.
func (c *Client) DeleteRecord(ctx context.Context, recordID string) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", c.zoneID, recordID)
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return c.remoteErr("delete_record", fmt.Errorf(errRequestFailed, err))
	}
	defer resp.Body.Close()

	var result apiResponse[struct {
		ID string `json:"id"`
	}]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return c.remoteErr("delete_record", fmt.Errorf(errDecodeResponse, err))
	}

	if !result.Success {
		return c.remoteErr("delete_record", fmt.Errorf(errProviderAPI, result.Errors))
	}

	c.logger.Info("DNS record deleted", "record_id", recordID)

	return nil
}

func (c *Client) remoteErr(step string, err error) error {
	return &domain.RemoteProvisioningError{System: "dns", Step: step, Err: err}
}
