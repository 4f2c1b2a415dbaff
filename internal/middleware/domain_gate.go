package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shopfabric/backend/internal/orchestrator"
	"github.com/shopfabric/backend/internal/response"
)

// GateChecker decides whether a hostname is currently fit to serve traffic.
type GateChecker interface {
	GateCheck(ctx context.Context, hostname string) orchestrator.GateDecision
}

// DomainGate blocks tenant-facing storefront requests whose hostname does
// not validate. Fail-closed: a timed-out or unknown validation blocks the
// request rather than letting it through, and the 503 carries machine-
// readable remediation instead of a bare error.
func DomainGate(checker GateChecker, logger *slog.Logger) fiber.Handler {
	log := logger.With("middleware", "domain_gate")

	return func(c *fiber.Ctx) error {
		hostname := requestHostname(c)
		if hostname == "" {
			return response.BadRequest(c, "missing Host header")
		}

		decision := checker.GateCheck(c.Context(), hostname)
		if decision.Allowed {
			return c.Next()
		}

		log.Warn("storefront request blocked by domain gate",
			"hostname", hostname,
			"bucket", decision.Bucket,
		)

		return response.ServiceUnavailable(c, response.ErrCodeDomainInvalid,
			"domain is not yet serving traffic", fiber.Map{
				"status":      decision.Bucket,
				"remediation": decision.Remediation,
			})
	}
}

func requestHostname(c *fiber.Ctx) string {
	host := c.Hostname()
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}
