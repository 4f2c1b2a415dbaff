package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/shopfabric/backend/internal/domain"
	"github.com/shopfabric/backend/internal/orchestrator"
	"github.com/shopfabric/backend/internal/response"
)

type stubGate struct {
	decisions map[string]orchestrator.GateDecision
	checked   []string
}

func (s *stubGate) GateCheck(ctx context.Context, hostname string) orchestrator.GateDecision {
	s.checked = append(s.checked, hostname)
	if d, ok := s.decisions[hostname]; ok {
		return d
	}
	return orchestrator.GateDecision{Allowed: true, Bucket: domain.HealthActive}
}

func newGateApp(gate *stubGate) *fiber.App {
	app := fiber.New()
	app.Use(DomainGate(gate, slog.New(slog.NewTextHandler(io.Discard, nil))))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("served")
	})
	return app
}

func TestDomainGateAllowsValidHostname(t *testing.T) {
	gate := &stubGate{}
	app := newGateApp(gate)

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "shop.example.com"

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if len(gate.checked) != 1 || gate.checked[0] != "shop.example.com" {
		t.Errorf("expected gate check for shop.example.com, got %v", gate.checked)
	}
}

func TestDomainGateBlocksWith503AndRemediation(t *testing.T) {
	gate := &stubGate{decisions: map[string]orchestrator.GateDecision{
		"broken.example.com": {
			Allowed: false,
			Bucket:  domain.HealthDNSPending,
			Remediation: &orchestrator.Remediation{
				Hint:          "DNS is not yet resolving to this platform; verify the record and allow time to propagate",
				ExpectedCNAME: "edge.shopfabric.io",
			},
		},
	}}
	app := newGateApp(gate)

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "broken.example.com"

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	var env response.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error == nil {
		t.Fatal("expected error envelope")
	}
	if env.Error.Code != response.ErrCodeDomainInvalid {
		t.Errorf("expected DOMAIN_INVALID, got %s", env.Error.Code)
	}

	details, ok := env.Error.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("expected structured details, got %T", env.Error.Details)
	}
	if details["status"] != string(domain.HealthDNSPending) {
		t.Errorf("expected status dns_pending in details, got %v", details["status"])
	}
	if details["remediation"] == nil {
		t.Error("expected remediation payload in details")
	}
}

func TestDomainGateStripsPortFromHost(t *testing.T) {
	gate := &stubGate{}
	app := newGateApp(gate)

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "Shop.Example.com:8443"

	if _, err := app.Test(req); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if len(gate.checked) != 1 || gate.checked[0] != "shop.example.com" {
		t.Errorf("expected normalized hostname, got %v", gate.checked)
	}
}
