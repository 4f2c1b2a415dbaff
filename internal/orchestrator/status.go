package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/shopfabric/backend/internal/domain"
)

// DomainStatusReport is the authoritative view of one domain: the derived
// overall status plus the three sub-signals it was derived from, and
// machine-readable remediation for whichever prerequisite is unmet.
type DomainStatusReport struct {
	Hostname      string
	TenantID      string
	OverallStatus domain.HealthBucket
	DNS           DNSStatusDetail
	Proxy         ProxyStatusDetail
	SSL           SSLStatusDetail
	Remediation   *Remediation
	CheckedAt     time.Time
}

type DNSStatusDetail struct {
	Configured     bool
	Propagated     bool
	RecordID       string
	ResolvedTarget string
	ExpectedTarget string
}

type ProxyStatusDetail struct {
	Active bool
}

type SSLStatusDetail struct {
	Valid           bool
	Issuer          string
	ExpiresAt       time.Time
	DaysUntilExpiry int
	Reason          string
}

// Remediation tells a caller what to fix and how long to wait, instead of a
// bare error code.
type Remediation struct {
	Hint               string `json:"hint"`
	ExpectedCNAME      string `json:"expectedCname,omitempty"`
	ExpectedARecord    string `json:"expectedARecord,omitempty"`
	ExpectedWaitWindow string `json:"expectedWaitWindow,omitempty"`
}

// DomainStatus probes hostname and derives the overall status with the fixed
// precedence: DNS unconfigured, then proxy inactive, then SSL invalid.
func (o *Orchestrator) DomainStatus(ctx context.Context, hostname string) (*DomainStatusReport, error) {
	d, err := o.domains.FindByHostname(ctx, hostname)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.PersistenceError{Op: "find_domain", Err: err}
	}

	result := o.validator.Validate(ctx, hostname)
	propagation := o.dns.CheckPropagation(ctx, hostname)
	proxyActive := o.proxy.IsEnabled(hostname)

	dnsConfigured := d.DNSRecordID != "" && (propagation.Propagated || result.DNSValid)

	report := &DomainStatusReport{
		Hostname:      hostname,
		TenantID:      d.TenantID,
		OverallStatus: domain.DeriveHealth(dnsConfigured, proxyActive, result.SSLValid),
		DNS: DNSStatusDetail{
			Configured:     d.DNSRecordID != "",
			Propagated:     propagation.Propagated,
			RecordID:       d.DNSRecordID,
			ResolvedTarget: result.ResolvedTarget,
			ExpectedTarget: o.expectedTarget(),
		},
		Proxy: ProxyStatusDetail{Active: proxyActive},
		SSL: SSLStatusDetail{
			Valid:           result.SSLValid,
			Issuer:          result.Issuer,
			ExpiresAt:       result.ExpiresAt,
			DaysUntilExpiry: result.DaysUntilExpiry,
			Reason:          result.Reason,
		},
		CheckedAt: result.CheckedAt,
	}

	report.Remediation = o.remediate(report.OverallStatus)

	return report, nil
}

func (o *Orchestrator) expectedTarget() string {
	if o.cnameTarget != "" {
		return o.cnameTarget
	}
	return o.serverIP
}

func (o *Orchestrator) remediate(bucket domain.HealthBucket) *Remediation {
	switch bucket {
	case domain.HealthDNSPending:
		r := &Remediation{
			Hint:               "DNS is not yet resolving to this platform; verify the record and allow time to propagate",
			ExpectedWaitWindow: "up to 48h for worldwide propagation",
		}
		if o.cnameTarget != "" {
			r.ExpectedCNAME = o.cnameTarget
		} else {
			r.ExpectedARecord = o.serverIP
		}
		return r
	case domain.HealthNginxPending:
		return &Remediation{
			Hint: "the virtual host is not active on the proxy; re-run domain setup to restore it",
		}
	case domain.HealthSSLPending:
		return &Remediation{
			Hint:               "certificate issuance is pending; it starts automatically once DNS resolves",
			ExpectedWaitWindow: "typically 15 minutes after DNS propagation",
		}
	default:
		return nil
	}
}

// GateDecision backs the fail-closed storefront gate: a hostname that does
// not validate is blocked with remediation rather than served.
type GateDecision struct {
	Allowed     bool
	Bucket      domain.HealthBucket
	Remediation *Remediation
}

func (o *Orchestrator) GateCheck(ctx context.Context, hostname string) GateDecision {
	result := o.validator.Validate(ctx, hostname)

	if result.OverallValid() {
		o.metrics.ValidationTotal.WithLabelValues("allowed").Inc()
		return GateDecision{Allowed: true, Bucket: domain.HealthActive}
	}

	bucket := domain.DeriveHealth(result.DNSValid, true, result.SSLValid)
	o.metrics.ValidationTotal.WithLabelValues("blocked").Inc()

	return GateDecision{
		Allowed:     false,
		Bucket:      bucket,
		Remediation: o.remediate(bucket),
	}
}
