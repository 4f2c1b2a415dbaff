package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shopfabric/backend/internal/domain"
	"github.com/shopfabric/backend/internal/health"
	"github.com/shopfabric/backend/internal/orchestrator"
	"github.com/shopfabric/backend/internal/response"
)

// DomainOrchestrator is the operation surface other platform components call
// through this handler.
type DomainOrchestrator interface {
	SetupDomain(ctx context.Context, tenantID, hostname string) (*orchestrator.SetupResult, error)
	RemoveDomain(ctx context.Context, tenantID, hostname string) (*orchestrator.RemoveResult, error)
	DomainStatus(ctx context.Context, hostname string) (*orchestrator.DomainStatusReport, error)
	RenewAllSSL(ctx context.Context) (bool, error)
}

type HealthChecker interface {
	CheckAll(ctx context.Context) (*health.Summary, error)
}

type DomainHandler struct {
	orch       DomainOrchestrator
	reconciler HealthChecker
	logger     *slog.Logger
}

func NewDomainHandler(orch DomainOrchestrator, reconciler HealthChecker, logger *slog.Logger) *DomainHandler {
	return &DomainHandler{
		orch:       orch,
		reconciler: reconciler,
		logger:     logger.With("handler", "domain"),
	}
}

func (h *DomainHandler) Register(app fiber.Router) {
	v1 := app.Group("/v1")
	v1.Post("/tenants/:tenantId/domains", h.SetupDomain)
	v1.Delete("/tenants/:tenantId/domains/:hostname", h.RemoveDomain)
	v1.Get("/domains/:hostname/status", h.DomainStatus)
	v1.Post("/domains/health-check", h.HealthCheckAll)
	v1.Post("/ssl/renew-all", h.RenewAllSSL)
	v1.Post("/webhooks/dns", h.DNSWebhook)
}

type SetupDomainRequest struct {
	Hostname string `json:"hostname"`
}

type SetupDomainResponse struct {
	Domain    DomainResponse `json:"domain"`
	DNS       DNSInfo        `json:"dns"`
	Proxy     ProxyInfo      `json:"proxy"`
	Resumed   bool           `json:"resumed"`
	NextSteps []string       `json:"nextSteps"`
}

type DomainResponse struct {
	ID                string `json:"id"`
	TenantID          string `json:"tenantId"`
	Hostname          string `json:"hostname"`
	DNSStatus         string `json:"dnsStatus"`
	SSLStatus         string `json:"sslStatus"`
	IsPrimary         bool   `json:"isPrimary"`
	VerificationToken string `json:"verificationToken"`
	Status            string `json:"status"`
	CreatedAt         string `json:"createdAt"`
}

type DNSInfo struct {
	RecordID string `json:"recordId"`
	Target   string `json:"target"`
	Proxied  bool   `json:"proxied"`
}

type ProxyInfo struct {
	Active bool `json:"active"`
}

func toDomainResponse(d *domain.CustomDomain) DomainResponse {
	return DomainResponse{
		ID:                d.ID,
		TenantID:          d.TenantID,
		Hostname:          d.Hostname,
		DNSStatus:         d.DNSStatus,
		SSLStatus:         d.SSLStatus,
		IsPrimary:         d.IsPrimary,
		VerificationToken: d.VerificationToken,
		Status:            d.Status,
		CreatedAt:         d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DomainHandler) SetupDomain(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")

	var req SetupDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Hostname == "" {
		return response.BadRequest(c, "hostname is required")
	}

	result, err := h.orch.SetupDomain(c.Context(), tenantID, req.Hostname)
	if err != nil {
		return h.respondError(c, err, req.Hostname)
	}

	resp := SetupDomainResponse{
		Domain: toDomainResponse(result.Domain),
		DNS: DNSInfo{
			RecordID: result.DNSRecord.ID,
			Target:   result.DNSRecord.Content,
			Proxied:  result.DNSRecord.Proxied,
		},
		Proxy:     ProxyInfo{Active: true},
		Resumed:   result.Resumed,
		NextSteps: result.NextSteps,
	}

	if result.Resumed {
		return response.OK(c, resp)
	}
	return response.Created(c, resp)
}

type RemoveDomainResponse struct {
	Success      bool `json:"success"`
	ProxyRemoved bool `json:"proxyRemoved"`
	DNSRemoved   bool `json:"dnsRemoved"`
}

func (h *DomainHandler) RemoveDomain(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	hostname := c.Params("hostname")

	result, err := h.orch.RemoveDomain(c.Context(), tenantID, hostname)
	if err != nil {
		return h.respondError(c, err, hostname)
	}

	return response.OK(c, RemoveDomainResponse{
		Success:      result.Success,
		ProxyRemoved: result.ProxyRemoved,
		DNSRemoved:   result.DNSRemoved,
	})
}

type DomainStatusResponse struct {
	Hostname      string                   `json:"hostname"`
	OverallStatus string                   `json:"overallStatus"`
	DNS           DNSStatusPayload         `json:"dns"`
	Proxy         ProxyInfo                `json:"proxy"`
	SSL           SSLStatusPayload         `json:"ssl"`
	Remediation   *orchestrator.Remediation `json:"remediation,omitempty"`
	CheckedAt     time.Time                `json:"checkedAt"`
}

type DNSStatusPayload struct {
	Configured     bool   `json:"configured"`
	Propagated     bool   `json:"propagated"`
	RecordID       string `json:"recordId,omitempty"`
	ResolvedTarget string `json:"resolvedTarget,omitempty"`
	ExpectedTarget string `json:"expectedTarget"`
}

type SSLStatusPayload struct {
	Valid           bool   `json:"valid"`
	Issuer          string `json:"issuer,omitempty"`
	ExpiresAt       string `json:"expiresAt,omitempty"`
	DaysUntilExpiry int    `json:"daysUntilExpiry"`
	Reason          string `json:"reason,omitempty"`
}

func (h *DomainHandler) DomainStatus(c *fiber.Ctx) error {
	hostname := c.Params("hostname")

	report, err := h.orch.DomainStatus(c.Context(), hostname)
	if err != nil {
		return h.respondError(c, err, hostname)
	}

	resp := DomainStatusResponse{
		Hostname:      report.Hostname,
		OverallStatus: string(report.OverallStatus),
		DNS: DNSStatusPayload{
			Configured:     report.DNS.Configured,
			Propagated:     report.DNS.Propagated,
			RecordID:       report.DNS.RecordID,
			ResolvedTarget: report.DNS.ResolvedTarget,
			ExpectedTarget: report.DNS.ExpectedTarget,
		},
		Proxy: ProxyInfo{Active: report.Proxy.Active},
		SSL: SSLStatusPayload{
			Valid:           report.SSL.Valid,
			Issuer:          report.SSL.Issuer,
			DaysUntilExpiry: report.SSL.DaysUntilExpiry,
			Reason:          report.SSL.Reason,
		},
		Remediation: report.Remediation,
		CheckedAt:   report.CheckedAt,
	}
	if !report.SSL.ExpiresAt.IsZero() {
		resp.SSL.ExpiresAt = report.SSL.ExpiresAt.UTC().Format(time.RFC3339)
	}

	return response.OK(c, resp)
}

func (h *DomainHandler) HealthCheckAll(c *fiber.Ctx) error {
	summary, err := h.reconciler.CheckAll(c.Context())
	if err != nil {
		h.logger.Error("on-demand health sweep failed", "error", err)
		return response.InternalError(c)
	}

	return response.OK(c, fiber.Map{
		"summary": fiber.Map{
			"total":        summary.Total,
			"active":       summary.Active,
			"sslPending":   summary.SSLPending,
			"nginxPending": summary.NginxPending,
			"dnsPending":   summary.DNSPending,
			"errors":       summary.Errors,
		},
		"details": summary.Details,
	})
}

func (h *DomainHandler) RenewAllSSL(c *fiber.Ctx) error {
	scheduled, err := h.orch.RenewAllSSL(c.Context())
	if err != nil {
		return h.respondError(c, err, "")
	}

	return response.Accepted(c, fiber.Map{"scheduled": scheduled})
}

// DNSWebhook acknowledges provider notifications. No synchronous processing
// happens here; the reconciler picks state changes up on its next sweep.
func (h *DomainHandler) DNSWebhook(c *fiber.Ctx) error {
	var event map[string]interface{}
	if err := c.BodyParser(&event); err != nil {
		return response.BadRequest(c, "invalid webhook payload")
	}

	h.logger.Info("provider webhook received",
		"event_type", event["type"],
		"bytes", len(c.Body()),
	)

	return response.Accepted(c, fiber.Map{"received": true})
}

// respondError maps the error taxonomy onto envelope codes, attaching the
// sub-status breakdown when one is available.
func (h *DomainHandler) respondError(c *fiber.Ctx, err error, hostname string) error {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return response.BadRequestWithDetails(c, validationErr.Error(), fiber.Map{
			"field": validationErr.Field,
		})
	}

	if errors.Is(err, domain.ErrHostnameTaken) {
		return response.Conflict(c, "hostname already registered to another tenant")
	}

	if errors.Is(err, domain.ErrNotFound) {
		return response.NotFound(c, "domain not found")
	}

	var credErr *domain.CredentialError
	if errors.As(err, &credErr) {
		h.logger.Error("provider credential failure", "error", err)
		return response.UpstreamError(c, response.ErrCodeUpstreamAuth, "DNS provider rejected our credentials", nil)
	}

	var configErr *domain.ConfigValidationError
	if errors.As(err, &configErr) {
		h.logger.Error("proxy config validation failed", "hostname", hostname, "error", err)
		return response.UpstreamError(c, response.ErrCodeUpstreamError, "proxy configuration failed validation and was not applied", fiber.Map{
			"system": "nginx",
		})
	}

	var remoteErr *domain.RemoteProvisioningError
	if errors.As(err, &remoteErr) {
		h.logger.Error("remote provisioning failed",
			"hostname", hostname,
			"system", remoteErr.System,
			"step", remoteErr.Step,
			"error", err,
		)
		return response.UpstreamError(c, response.ErrCodeUpstreamError, "remote provisioning failed", fiber.Map{
			"system": remoteErr.System,
			"step":   remoteErr.Step,
		})
	}

	h.logger.Error("domain operation failed", "hostname", hostname, "error", err)
	return response.InternalError(c)
}
