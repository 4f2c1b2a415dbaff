package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shopfabric/backend/internal/dns"
	"github.com/shopfabric/backend/internal/domain"
	"github.com/shopfabric/backend/internal/health"
	"github.com/shopfabric/backend/internal/orchestrator"
	"github.com/shopfabric/backend/internal/response"
)

type mockOrchestrator struct {
	setupFunc  func(ctx context.Context, tenantID, hostname string) (*orchestrator.SetupResult, error)
	removeFunc func(ctx context.Context, tenantID, hostname string) (*orchestrator.RemoveResult, error)
	statusFunc func(ctx context.Context, hostname string) (*orchestrator.DomainStatusReport, error)
	renewFunc  func(ctx context.Context) (bool, error)
}

func defaultSetupResult() *orchestrator.SetupResult {
	return &orchestrator.SetupResult{
		Domain: &domain.CustomDomain{
			ID:        "dom-1",
			TenantID:  "tenant-1",
			Hostname:  "shop.example.com",
			DNSStatus: domain.SubStatusPending,
			SSLStatus: domain.SubStatusPending,
			IsPrimary: true,
			Status:    domain.StatusActive,
			CreatedAt: time.Now(),
		},
		DNSRecord: &dns.Record{ID: "rec-1", Type: "A", Name: "shop.example.com", Content: "203.0.113.10"},
		NextSteps: []string{"wait for propagation"},
	}
}

func (m *mockOrchestrator) SetupDomain(ctx context.Context, tenantID, hostname string) (*orchestrator.SetupResult, error) {
	if m.setupFunc != nil {
		return m.setupFunc(ctx, tenantID, hostname)
	}
	return defaultSetupResult(), nil
}

func (m *mockOrchestrator) RemoveDomain(ctx context.Context, tenantID, hostname string) (*orchestrator.RemoveResult, error) {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, tenantID, hostname)
	}
	return &orchestrator.RemoveResult{Success: true, ProxyRemoved: true, DNSRemoved: true, RowDeleted: true}, nil
}

func (m *mockOrchestrator) DomainStatus(ctx context.Context, hostname string) (*orchestrator.DomainStatusReport, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, hostname)
	}
	return &orchestrator.DomainStatusReport{
		Hostname:      hostname,
		TenantID:      "tenant-1",
		OverallStatus: domain.HealthActive,
		CheckedAt:     time.Now(),
	}, nil
}

func (m *mockOrchestrator) RenewAllSSL(ctx context.Context) (bool, error) {
	if m.renewFunc != nil {
		return m.renewFunc(ctx)
	}
	return true, nil
}

type mockReconciler struct {
	checkAllFunc func(ctx context.Context) (*health.Summary, error)
}

func (m *mockReconciler) CheckAll(ctx context.Context) (*health.Summary, error) {
	if m.checkAllFunc != nil {
		return m.checkAllFunc(ctx)
	}
	return &health.Summary{Total: 2, Active: 1, DNSPending: 1, Details: []health.DomainHealth{}}, nil
}

func newTestApp(orch *mockOrchestrator, rec *mockReconciler) *fiber.App {
	app := fiber.New()
	h := NewDomainHandler(orch, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Register(app)
	return app
}

func decodeEnvelope(t *testing.T, body io.Reader) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return env
}

func TestSetupDomainReturns201(t *testing.T) {
	app := newTestApp(&mockOrchestrator{}, &mockReconciler{})

	body, _ := json.Marshal(SetupDomainRequest{Hostname: "shop.example.com"})
	req := httptest.NewRequest("POST", "/v1/tenants/tenant-1/domains", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp.Body)
	if !env.Success {
		t.Error("expected success envelope")
	}
}

func TestSetupDomainResumedReturns200(t *testing.T) {
	orch := &mockOrchestrator{
		setupFunc: func(ctx context.Context, tenantID, hostname string) (*orchestrator.SetupResult, error) {
			result := defaultSetupResult()
			result.Resumed = true
			return result, nil
		},
	}
	app := newTestApp(orch, &mockReconciler{})

	body, _ := json.Marshal(SetupDomainRequest{Hostname: "shop.example.com"})
	req := httptest.NewRequest("POST", "/v1/tenants/tenant-1/domains", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200 for resumed setup, got %d", resp.StatusCode)
	}
}

func TestSetupDomainMissingHostname(t *testing.T) {
	app := newTestApp(&mockOrchestrator{}, &mockReconciler{})

	req := httptest.NewRequest("POST", "/v1/tenants/tenant-1/domains", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSetupDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   response.ErrorCode
	}{
		{
			"validation error",
			&domain.ValidationError{Field: "hostname", Reason: "invalid hostname syntax"},
			fiber.StatusBadRequest,
			response.ErrCodeInvalidPayload,
		},
		{
			"hostname taken",
			domain.ErrHostnameTaken,
			fiber.StatusConflict,
			response.ErrCodeConflict,
		},
		{
			"credential failure",
			&domain.CredentialError{Provider: "dns", Err: context.DeadlineExceeded},
			fiber.StatusBadGateway,
			response.ErrCodeUpstreamAuth,
		},
		{
			"proxy config rejected",
			&domain.ConfigValidationError{Output: "nginx: [emerg] duplicate server name"},
			fiber.StatusBadGateway,
			response.ErrCodeUpstreamError,
		},
		{
			"remote provisioning failure",
			&domain.RemoteProvisioningError{System: "dns", Step: "create_record", Err: context.DeadlineExceeded},
			fiber.StatusBadGateway,
			response.ErrCodeUpstreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &mockOrchestrator{
				setupFunc: func(ctx context.Context, tenantID, hostname string) (*orchestrator.SetupResult, error) {
					return nil, tt.err
				},
			}
			app := newTestApp(orch, &mockReconciler{})

			body, _ := json.Marshal(SetupDomainRequest{Hostname: "shop.example.com"})
			req := httptest.NewRequest("POST", "/v1/tenants/tenant-1/domains", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			env := decodeEnvelope(t, resp.Body)
			if env.Error == nil {
				t.Fatal("expected error envelope")
			}
			if env.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, env.Error.Code)
			}
		})
	}
}

func TestRemoveDomainReportsPartialFailure(t *testing.T) {
	orch := &mockOrchestrator{
		removeFunc: func(ctx context.Context, tenantID, hostname string) (*orchestrator.RemoveResult, error) {
			return &orchestrator.RemoveResult{Success: true, ProxyRemoved: false, DNSRemoved: true, RowDeleted: true}, nil
		},
	}
	app := newTestApp(orch, &mockReconciler{})

	req := httptest.NewRequest("DELETE", "/v1/tenants/tenant-1/domains/shop.example.com", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp.Body)
	data, _ := json.Marshal(env.Data)
	var removed RemoveDomainResponse
	if err := json.Unmarshal(data, &removed); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if removed.ProxyRemoved {
		t.Error("expected proxyRemoved=false to surface to the caller")
	}
	if !removed.Success {
		t.Error("expected success=true when the row is gone")
	}
}

func TestRemoveDomainNotFound(t *testing.T) {
	orch := &mockOrchestrator{
		removeFunc: func(ctx context.Context, tenantID, hostname string) (*orchestrator.RemoveResult, error) {
			return nil, domain.ErrNotFound
		},
	}
	app := newTestApp(orch, &mockReconciler{})

	req := httptest.NewRequest("DELETE", "/v1/tenants/tenant-1/domains/gone.example.com", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDomainStatusIncludesRemediation(t *testing.T) {
	orch := &mockOrchestrator{
		statusFunc: func(ctx context.Context, hostname string) (*orchestrator.DomainStatusReport, error) {
			return &orchestrator.DomainStatusReport{
				Hostname:      hostname,
				TenantID:      "tenant-1",
				OverallStatus: domain.HealthDNSPending,
				DNS:           orchestrator.DNSStatusDetail{Configured: true, ExpectedTarget: "edge.shopfabric.io"},
				Remediation: &orchestrator.Remediation{
					Hint:          "DNS is not yet resolving to this platform; verify the record and allow time to propagate",
					ExpectedCNAME: "edge.shopfabric.io",
				},
				CheckedAt: time.Now(),
			}, nil
		},
	}
	app := newTestApp(orch, &mockReconciler{})

	req := httptest.NewRequest("GET", "/v1/domains/shop.example.com/status", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	env := decodeEnvelope(t, resp.Body)
	data, _ := json.Marshal(env.Data)
	var status DomainStatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	if status.OverallStatus != string(domain.HealthDNSPending) {
		t.Errorf("expected dns_pending, got %s", status.OverallStatus)
	}
	if status.Remediation == nil || status.Remediation.ExpectedCNAME != "edge.shopfabric.io" {
		t.Errorf("expected remediation with CNAME target, got %+v", status.Remediation)
	}
}

func TestHealthCheckAllReturnsSummary(t *testing.T) {
	app := newTestApp(&mockOrchestrator{}, &mockReconciler{})

	req := httptest.NewRequest("POST", "/v1/domains/health-check", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp.Body)
	if !env.Success {
		t.Error("expected success envelope")
	}
}

func TestRenewAllSSLReturns202(t *testing.T) {
	app := newTestApp(&mockOrchestrator{}, &mockReconciler{})

	req := httptest.NewRequest("POST", "/v1/ssl/renew-all", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
}

func TestDNSWebhookAcknowledges(t *testing.T) {
	app := newTestApp(&mockOrchestrator{}, &mockReconciler{})

	body := []byte(`{"type":"dns_record.updated","record":{"name":"shop.example.com"}}`)
	req := httptest.NewRequest("POST", "/v1/webhooks/dns", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
}
