package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopfabric/backend/internal/dns"
	"github.com/shopfabric/backend/internal/domain"
	"github.com/shopfabric/backend/internal/metrics"
)

// DNSProvisioner is the slice of the DNS provider client the orchestrator
// drives.
type DNSProvisioner interface {
	EnsureRecord(ctx context.Context, hostname, ip string) (*dns.Record, error)
	DeleteRecord(ctx context.Context, recordID string) error
	FindRecord(ctx context.Context, hostname string) (*dns.Record, error)
	CheckPropagation(ctx context.Context, hostname string) dns.PropagationResult
}

// ProxyProvisioner is the slice of the reverse-proxy provisioner the
// orchestrator drives. Activate is render+enable+validate+reload as one
// serialized unit.
type ProxyProvisioner interface {
	Activate(ctx context.Context, tenant *domain.Tenant, hostname string) error
	Disable(hostname string) error
	Remove(hostname string) error
	IsEnabled(hostname string) bool
}

// HostnameValidator is the cached real-time DNS+TLS prober.
type HostnameValidator interface {
	Validate(ctx context.Context, hostname string) domain.ValidationResult
	Invalidate(hostname string)
}

// CertObserver delegates certificate work to the external automation daemon.
type CertObserver interface {
	ScheduleRenewAll(ctx context.Context) (bool, error)
}

// Orchestrator sequences DNS and proxy provisioning for one domain and owns
// the compensation policy. Setup aborts on the first failure and unwinds;
// teardown attempts every step regardless of individual failures. The
// asymmetry is deliberate: a dangling remote artifact is cheaper than a
// domain stuck mid-removal.
type Orchestrator struct {
	tenants   domain.TenantRegistry
	domains   domain.CustomDomainRepository
	dns       DNSProvisioner
	proxy     ProxyProvisioner
	validator HostnameValidator
	certs     CertObserver
	metrics   *metrics.Metrics
	logger    *slog.Logger

	serverIP    string
	cnameTarget string
	opTimeout   time.Duration
}

type Config struct {
	Tenants   domain.TenantRegistry
	Domains   domain.CustomDomainRepository
	DNS       DNSProvisioner
	Proxy     ProxyProvisioner
	Validator HostnameValidator
	Certs     CertObserver
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	ServerIP         string
	CNAMETarget      string
	OperationTimeout time.Duration
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		tenants:     cfg.Tenants,
		domains:     cfg.Domains,
		dns:         cfg.DNS,
		proxy:       cfg.Proxy,
		validator:   cfg.Validator,
		certs:       cfg.Certs,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With("component", "orchestrator"),
		serverIP:    cfg.ServerIP,
		cnameTarget: cfg.CNAMETarget,
		opTimeout:   cfg.OperationTimeout,
	}
}

// SetupResult is what a successful provisioning run hands back to callers.
// NextSteps are descriptive only; nothing in them is polled synchronously.
type SetupResult struct {
	Domain    *domain.CustomDomain
	DNSRecord *dns.Record
	Resumed   bool
	NextSteps []string
}

func (o *Orchestrator) nextSteps(hostname string) []string {
	return []string{
		fmt.Sprintf("DNS record for %s was submitted to the provider; public propagation usually completes within minutes but can take up to 48h", hostname),
		"the certificate automation daemon will observe the new virtual host and issue a certificate, typically within 15 minutes of DNS propagation",
		fmt.Sprintf("point external checks at the status endpoint for %s to watch dns/proxy/ssl converge", hostname),
	}
}

// SetupDomain provisions hostname for a tenant: DNS record, then proxy vhost,
// then the database row. Pre-flight violations return before any remote call.
// A failure after the DNS step compensates by deleting the record; a failure
// persisting the row compensates both remote systems. Re-invoking for an
// already provisioned hostname completes instead of duplicating.
func (o *Orchestrator) SetupDomain(ctx context.Context, tenantID, hostname string) (*SetupResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opTimeout)
	defer cancel()

	hostname = strings.ToLower(strings.TrimSpace(hostname))

	if !domain.ValidHostname(hostname) {
		return nil, &domain.ValidationError{Field: "hostname", Reason: "invalid hostname syntax"}
	}

	tenant, err := o.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{Field: "tenantId", Reason: "unknown tenant"}
		}
		return nil, &domain.PersistenceError{Op: "find_tenant", Err: err}
	}

	existing, err := o.domains.FindByHostname(ctx, hostname)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.PersistenceError{Op: "find_domain", Err: err}
	}

	if existing != nil {
		if existing.TenantID != tenantID {
			return nil, domain.ErrHostnameTaken
		}
		return o.resume(ctx, tenant, existing)
	}

	count, err := o.domains.CountByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "count_domains", Err: err}
	}
	if count >= tenant.MaxDomains {
		return nil, &domain.ValidationError{
			Field:  "hostname",
			Reason: fmt.Sprintf("plan limit reached: tenant may register at most %d domains", tenant.MaxDomains),
		}
	}

	record, err := o.dns.EnsureRecord(ctx, hostname, o.serverIP)
	if err != nil {
		// Nothing provisioned yet, nothing to compensate.
		o.metrics.SetupTotal.WithLabelValues("dns_failed").Inc()
		return nil, err
	}

	if err := o.proxy.Activate(ctx, tenant, hostname); err != nil {
		o.compensateDNS(ctx, hostname, record.ID)
		o.metrics.SetupTotal.WithLabelValues("proxy_failed").Inc()
		return nil, err
	}

	created, err := o.domains.Create(ctx, domain.CreateCustomDomainInput{
		TenantID:          tenantID,
		Hostname:          hostname,
		DNSRecordID:       record.ID,
		TargetIP:          record.Content,
		DNSStatus:         domain.SubStatusPending,
		SSLStatus:         domain.SubStatusPending,
		ProxyActive:       true,
		IsPrimary:         count == 0,
		VerificationToken: uuid.New().String(),
		Status:            domain.StatusActive,
	})
	if err != nil {
		o.compensateProxy(hostname)
		o.compensateDNS(ctx, hostname, record.ID)
		o.metrics.SetupTotal.WithLabelValues("persist_failed").Inc()
		return nil, &domain.PersistenceError{Op: "create_domain", Err: err}
	}

	o.validator.Invalidate(hostname)
	o.metrics.SetupTotal.WithLabelValues("ok").Inc()

	o.logger.Info("domain provisioned",
		"tenant_id", tenantID,
		"hostname", hostname,
		"record_id", record.ID,
		"is_primary", created.IsPrimary,
	)

	return &SetupResult{
		Domain:    created,
		DNSRecord: record,
		NextSteps: o.nextSteps(hostname),
	}, nil
}

// resume re-runs the idempotent remote steps for a domain row that already
// exists. Both EnsureRecord and Activate converge to the desired state when
// the artifact is already present.
func (o *Orchestrator) resume(ctx context.Context, tenant *domain.Tenant, existing *domain.CustomDomain) (*SetupResult, error) {
	record, err := o.dns.EnsureRecord(ctx, existing.Hostname, o.serverIP)
	if err != nil {
		o.metrics.SetupTotal.WithLabelValues("dns_failed").Inc()
		return nil, err
	}

	if err := o.proxy.Activate(ctx, tenant, existing.Hostname); err != nil {
		// The DNS record predates this invocation; resuming must not
		// tear down state a previous successful run established.
		o.metrics.SetupTotal.WithLabelValues("proxy_failed").Inc()
		return nil, err
	}

	o.validator.Invalidate(existing.Hostname)
	o.metrics.SetupTotal.WithLabelValues("resumed").Inc()

	o.logger.Info("domain setup resumed",
		"tenant_id", existing.TenantID,
		"hostname", existing.Hostname,
		"record_id", record.ID,
	)

	return &SetupResult{
		Domain:    existing,
		DNSRecord: record,
		Resumed:   true,
		NextSteps: o.nextSteps(existing.Hostname),
	}, nil
}

// compensateDNS deletes the DNS record created earlier in a failed setup.
// Compensation is best effort and never retried: its failure is logged and
// must not mask the original error.
func (o *Orchestrator) compensateDNS(ctx context.Context, hostname, recordID string) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := o.dns.DeleteRecord(compCtx, recordID); err != nil {
		o.metrics.CompensationTotal.WithLabelValues("dns", "failed").Inc()
		o.logger.Error("compensation failed: orphaned DNS record remains",
			"hostname", hostname,
			"record_id", recordID,
			"error", err,
		)
		return
	}

	o.metrics.CompensationTotal.WithLabelValues("dns", "ok").Inc()
	o.logger.Info("compensated DNS record", "hostname", hostname, "record_id", recordID)
}

func (o *Orchestrator) compensateProxy(hostname string) {
	if err := o.proxy.Disable(hostname); err != nil {
		o.metrics.CompensationTotal.WithLabelValues("proxy", "failed").Inc()
		o.logger.Error("compensation failed: vhost remains enabled",
			"hostname", hostname,
			"error", err,
		)
		return
	}

	o.metrics.CompensationTotal.WithLabelValues("proxy", "ok").Inc()
	o.logger.Info("compensated proxy vhost", "hostname", hostname)
}

// RemoveResult reports which teardown steps succeeded.
type RemoveResult struct {
	Success      bool
	ProxyRemoved bool
	DNSRemoved   bool
	RowDeleted   bool
}

// RemoveDomain tears hostname down with the opposite failure policy to
// setup: every step is attempted independently and one failure does not
// block the others.
func (o *Orchestrator) RemoveDomain(ctx context.Context, tenantID, hostname string) (*RemoveResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opTimeout)
	defer cancel()

	hostname = strings.ToLower(strings.TrimSpace(hostname))

	existing, err := o.domains.FindByHostname(ctx, hostname)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.PersistenceError{Op: "find_domain", Err: err}
	}
	if existing.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}

	result := &RemoveResult{}

	if err := o.proxy.Remove(hostname); err != nil {
		o.logger.Warn("teardown: proxy removal failed, continuing", "hostname", hostname, "error", err)
	} else {
		result.ProxyRemoved = true
	}

	if existing.DNSRecordID != "" {
		if err := o.dns.DeleteRecord(ctx, existing.DNSRecordID); err != nil {
			o.logger.Warn("teardown: DNS record deletion failed, continuing",
				"hostname", hostname,
				"record_id", existing.DNSRecordID,
				"error", err,
			)
		} else {
			result.DNSRemoved = true
		}
	} else {
		result.DNSRemoved = true
	}

	if err := o.domains.Delete(ctx, hostname); err != nil && !errors.Is(err, domain.ErrNotFound) {
		o.metrics.TeardownTotal.WithLabelValues("row_failed").Inc()
		o.logger.Error("teardown: row deletion failed", "hostname", hostname, "error", err)
	} else {
		result.RowDeleted = true
	}

	o.validator.Invalidate(hostname)

	result.Success = result.RowDeleted
	if result.Success {
		o.metrics.TeardownTotal.WithLabelValues("ok").Inc()
		o.logger.Info("domain removed",
			"tenant_id", tenantID,
			"hostname", hostname,
			"proxy_removed", result.ProxyRemoved,
			"dns_removed", result.DNSRemoved,
		)
	}

	return result, nil
}

// RenewAllSSL delegates a certificate renewal sweep to the external
// automation daemon.
func (o *Orchestrator) RenewAllSSL(ctx context.Context) (bool, error) {
	scheduled, err := o.certs.ScheduleRenewAll(ctx)
	if err != nil {
		return false, &domain.RemoteProvisioningError{System: "certd", Step: "schedule_renewals", Err: err}
	}

	o.logger.Info("certificate renewal sweep scheduled")
	return scheduled, nil
}
