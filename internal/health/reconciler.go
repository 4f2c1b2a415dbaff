package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopfabric/backend/internal/dns"
	"github.com/shopfabric/backend/internal/domain"
	"github.com/shopfabric/backend/internal/metrics"
)

// DNSProber is the raw provider-side probe the reconciler uses next to the
// validator: is the record still present at the provider, and is it publicly
// visible.
type DNSProber interface {
	FindRecord(ctx context.Context, hostname string) (*dns.Record, error)
	CheckPropagation(ctx context.Context, hostname string) dns.PropagationResult
}

type ProxyProber interface {
	IsEnabled(hostname string) bool
}

type HostnameValidator interface {
	Validate(ctx context.Context, hostname string) domain.ValidationResult
}

// Reconciler sweeps every registered domain, runs the validation pipeline
// per domain, and rolls the outcomes into bucket counts. It only ever writes
// status and timestamp columns; it never touches identity fields and never
// mutates the remote systems.
type Reconciler struct {
	domains   domain.CustomDomainRepository
	validator HostnameValidator
	dns       DNSProber
	proxy     ProxyProber
	metrics   *metrics.Metrics
	logger    *slog.Logger

	interval    time.Duration
	concurrency int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type Config struct {
	Domains   domain.CustomDomainRepository
	Validator HostnameValidator
	DNS       DNSProber
	Proxy     ProxyProber
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	Interval    time.Duration
	Concurrency int
}

func New(cfg Config) *Reconciler {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Reconciler{
		domains:     cfg.Domains,
		validator:   cfg.Validator,
		dns:         cfg.DNS,
		proxy:       cfg.Proxy,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With("component", "health_reconciler"),
		interval:    cfg.Interval,
		concurrency: concurrency,
		stopCh:      make(chan struct{}),
	}
}

// Summary is the rolled-up outcome of one sweep, bucketed with the same
// precedence rule the orchestrator derives per-domain status with.
type Summary struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	SSLPending   int            `json:"sslPending"`
	NginxPending int            `json:"nginxPending"`
	DNSPending   int            `json:"dnsPending"`
	Errors       int            `json:"errors"`
	Details      []DomainHealth `json:"details"`
}

type DomainHealth struct {
	Hostname    string              `json:"hostname"`
	TenantID    string              `json:"tenantId"`
	Bucket      domain.HealthBucket `json:"bucket"`
	Propagated  bool                `json:"propagated"`
	ProxyActive bool                `json:"proxyActive"`
	SSLValid    bool                `json:"sslValid"`
	CheckedAt   time.Time           `json:"checkedAt"`
	Error       string              `json:"error,omitempty"`
}

// Start runs the scheduled sweep loop until Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("starting health reconciler", "interval", r.interval, "concurrency", r.concurrency)

	r.wg.Add(1)
	go r.run(ctx)
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("health reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.CheckAll(ctx); err != nil {
				r.logger.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}

// CheckAll fans the validation pipeline out across all registered domains
// with bounded concurrency and aggregates the results. Domains are
// independent, so the only shared state is the collected slice.
func (r *Reconciler) CheckAll(ctx context.Context) (*Summary, error) {
	started := time.Now()

	all, err := r.domains.ListAll(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list_domains", Err: err}
	}

	details := make([]DomainHealth, len(all))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i := range all {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, d domain.CustomDomain) {
			defer wg.Done()
			defer func() { <-sem }()
			details[i] = r.checkOne(ctx, d)
		}(i, all[i])
	}
	wg.Wait()

	summary := &Summary{Total: len(all), Details: details}
	for _, dh := range details {
		switch dh.Bucket {
		case domain.HealthActive:
			summary.Active++
		case domain.HealthSSLPending:
			summary.SSLPending++
		case domain.HealthNginxPending:
			summary.NginxPending++
		case domain.HealthDNSPending:
			summary.DNSPending++
		default:
			summary.Errors++
		}
	}

	r.publish(summary)
	r.metrics.ReconcileDuration.Observe(time.Since(started).Seconds())

	r.logger.Info("health sweep completed",
		"total", summary.Total,
		"active", summary.Active,
		"ssl_pending", summary.SSLPending,
		"nginx_pending", summary.NginxPending,
		"dns_pending", summary.DNSPending,
		"errors", summary.Errors,
		"elapsed", time.Since(started),
	)

	return summary, nil
}

func (r *Reconciler) checkOne(ctx context.Context, d domain.CustomDomain) DomainHealth {
	now := time.Now().UTC()

	health := DomainHealth{
		Hostname:  d.Hostname,
		TenantID:  d.TenantID,
		CheckedAt: now,
	}

	record, err := r.dns.FindRecord(ctx, d.Hostname)
	if err != nil {
		health.Bucket = domain.HealthError
		health.Error = err.Error()
		r.persist(ctx, d, health, nil)
		return health
	}

	propagation := r.dns.CheckPropagation(ctx, d.Hostname)
	health.Propagated = propagation.Propagated
	health.ProxyActive = r.proxy.IsEnabled(d.Hostname)

	result := r.validator.Validate(ctx, d.Hostname)
	health.SSLValid = result.SSLValid

	dnsConfigured := record != nil && (propagation.Propagated || result.DNSValid)
	health.Bucket = domain.DeriveHealth(dnsConfigured, health.ProxyActive, health.SSLValid)

	r.persist(ctx, d, health, &result)
	return health
}

// persist writes the sub-status and timestamp columns back. Identity fields
// are out of bounds for the reconciler.
func (r *Reconciler) persist(ctx context.Context, d domain.CustomDomain, health DomainHealth, result *domain.ValidationResult) {
	update := domain.HealthUpdate{
		DNSStatus:   subStatus(health.Propagated),
		SSLStatus:   subStatus(health.SSLValid),
		ProxyActive: health.ProxyActive,
		Status:      d.Status,
		VerifiedAt:  d.VerifiedAt,
		LastCheckAt: health.CheckedAt,
	}

	if health.Bucket == domain.HealthError {
		update.DNSStatus = domain.SubStatusError
		update.Status = domain.StatusError
	} else if health.Bucket == domain.HealthActive {
		update.Status = domain.StatusActive
		if d.VerifiedAt == nil {
			verifiedAt := health.CheckedAt
			update.VerifiedAt = &verifiedAt
		}
	}

	if result != nil && !result.ExpiresAt.IsZero() {
		expiresAt := result.ExpiresAt
		update.SSLExpiresAt = &expiresAt
	}

	if err := r.domains.UpdateHealth(ctx, d.Hostname, update); err != nil {
		r.logger.Warn("failed to persist health update", "hostname", d.Hostname, "error", err)
	}
}

func subStatus(ok bool) string {
	if ok {
		return domain.SubStatusActive
	}
	return domain.SubStatusPending
}

func (r *Reconciler) publish(summary *Summary) {
	r.metrics.HealthBucket.WithLabelValues(string(domain.HealthActive)).Set(float64(summary.Active))
	r.metrics.HealthBucket.WithLabelValues(string(domain.HealthSSLPending)).Set(float64(summary.SSLPending))
	r.metrics.HealthBucket.WithLabelValues(string(domain.HealthNginxPending)).Set(float64(summary.NginxPending))
	r.metrics.HealthBucket.WithLabelValues(string(domain.HealthDNSPending)).Set(float64(summary.DNSPending))
	r.metrics.HealthBucket.WithLabelValues(string(domain.HealthError)).Set(float64(summary.Errors))
}
