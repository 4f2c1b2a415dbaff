package validator

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/shopfabric/backend/internal/domain"
)

// Validator probes a hostname's real-world state: does public DNS point where
// we expect, and does a TLS handshake present a currently valid certificate.
// Results are cached per hostname with a short TTL because the validator sits
// on the tenant-facing request path.
type Validator struct {
	expectedTarget string
	serverIP       string
	probeTimeout   time.Duration
	logger         *slog.Logger
	cache          *resultCache

	// test seams
	now      func() time.Time
	dialAddr func(hostname string) string
}

type Config struct {
	// CNAMETarget is the provider hostname tenant domains should alias.
	CNAMETarget string
	// ServerIP is accepted when the domain uses a bare A record instead.
	ServerIP     string
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
}

func New(cfg Config, logger *slog.Logger) *Validator {
	now := time.Now
	return &Validator{
		expectedTarget: strings.TrimSuffix(cfg.CNAMETarget, "."),
		serverIP:       cfg.ServerIP,
		probeTimeout:   cfg.ProbeTimeout,
		logger:         logger.With("component", "validator"),
		cache:          newResultCache(cfg.CacheTTL, now),
		now:            now,
		dialAddr: func(hostname string) string {
			return net.JoinHostPort(hostname, "443")
		},
	}
}

// Validate is the read-through entry point: a cached result younger than the
// TTL is returned as-is, otherwise both probes run and the outcome is cached.
func (v *Validator) Validate(ctx context.Context, hostname string) domain.ValidationResult {
	if cached, ok := v.cache.get(hostname); ok {
		return cached
	}

	result := v.probe(ctx, hostname)
	v.cache.put(hostname, result)
	return result
}

// Invalidate drops the cached result for one hostname, forcing the next
// Validate call to re-probe.
func (v *Validator) Invalidate(hostname string) {
	v.cache.invalidate(hostname)
}

// Clear drops every cached result.
func (v *Validator) Clear() {
	v.cache.clear()
}

func (v *Validator) probe(ctx context.Context, hostname string) domain.ValidationResult {
	result := domain.ValidationResult{
		Hostname:  hostname,
		CheckedAt: v.now().UTC(),
	}

	dnsValid, resolved := v.ValidateDNS(ctx, hostname)
	result.DNSValid = dnsValid
	result.ResolvedTarget = resolved

	ssl := v.ValidateSSL(ctx, hostname)
	result.SSLValid = ssl.SSLValid
	result.Issuer = ssl.Issuer
	result.ExpiresAt = ssl.ExpiresAt
	result.DaysUntilExpiry = ssl.DaysUntilExpiry
	if result.Reason == "" {
		result.Reason = ssl.Reason
	}

	v.logger.Debug("hostname validated",
		"hostname", hostname,
		"dns_valid", result.DNSValid,
		"ssl_valid", result.SSLValid,
		"resolved", resolved,
	)

	return result
}

// ValidateDNS resolves hostname's CNAME (falling back to A records) and
// compares it to the expected provider target or server IP.
func (v *Validator) ValidateDNS(ctx context.Context, hostname string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, v.probeTimeout)
	defer cancel()

	resolver := net.DefaultResolver

	cname, err := resolver.LookupCNAME(ctx, hostname)
	if err == nil {
		canonical := strings.TrimSuffix(cname, ".")
		if canonical != "" && canonical != hostname && v.expectedTarget != "" {
			return strings.EqualFold(canonical, v.expectedTarget), canonical
		}
	}

	addrs, err := resolver.LookupHost(ctx, hostname)
	if err != nil {
		return false, ""
	}

	for _, addr := range addrs {
		if addr == v.serverIP {
			return true, addr
		}
	}

	if len(addrs) > 0 {
		return false, addrs[0]
	}
	return false, ""
}

// ValidateSSL opens a TLS connection to hostname and inspects the peer
// certificate. It is fail-closed: any dial failure or timeout within the
// bound yields SSLValid=false with a reason, never an error.
func (v *Validator) ValidateSSL(ctx context.Context, hostname string) domain.ValidationResult {
	result := domain.ValidationResult{
		Hostname:  hostname,
		CheckedAt: v.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, v.probeTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: v.probeTimeout},
		Config:    &tls.Config{ServerName: hostname},
	}

	conn, err := dialer.DialContext(ctx, "tcp", v.dialAddr(hostname))
	if err != nil {
		if ctx.Err() != nil {
			result.Reason = domain.ErrValidationTimeout.Error()
		} else {
			result.Reason = err.Error()
		}
		return result
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		result.Reason = "not a TLS connection"
		return result
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		result.Reason = "no peer certificate presented"
		return result
	}

	leaf := certs[0]
	now := v.now()

	result.Issuer = leaf.Issuer.CommonName
	result.ExpiresAt = leaf.NotAfter
	result.DaysUntilExpiry = int(leaf.NotAfter.Sub(now).Hours() / 24)

	switch {
	case now.Before(leaf.NotBefore):
		result.Reason = "certificate not yet valid"
	case now.After(leaf.NotAfter):
		result.Reason = "certificate expired"
	default:
		result.SSLValid = true
	}

	return result
}
