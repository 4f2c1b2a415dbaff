package domain

import (
	"context"
	"time"
)

const (
	SubStatusPending = "pending"
	SubStatusActive  = "active"
	SubStatusError   = "error"

	StatusSetup    = "setup"
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusError    = "error"
)

// HealthBucket is the derived provisioning-health state of a domain. It is
// computed from the three sub-signals and never stored.
type HealthBucket string

const (
	HealthDNSPending   HealthBucket = "dns_pending"
	HealthNginxPending HealthBucket = "nginx_pending"
	HealthSSLPending   HealthBucket = "ssl_pending"
	HealthActive       HealthBucket = "active"
	HealthError        HealthBucket = "error"
)

// DeriveHealth rolls the three sub-signals into one bucket. Precedence is
// fixed: the earliest unmet prerequisite wins (DNS before proxy before SSL).
func DeriveHealth(dnsConfigured, proxyActive, sslValid bool) HealthBucket {
	switch {
	case !dnsConfigured:
		return HealthDNSPending
	case !proxyActive:
		return HealthNginxPending
	case !sslValid:
		return HealthSSLPending
	default:
		return HealthActive
	}
}

type CustomDomain struct {
	ID                string
	TenantID          string
	Hostname          string
	DNSRecordID       string
	TargetIP          string
	DNSStatus         string
	SSLStatus         string
	ProxyActive       bool
	IsPrimary         bool
	VerificationToken string
	Status            string
	CreatedAt         time.Time
	VerifiedAt        *time.Time
	LastCheckAt       *time.Time
	SSLExpiresAt      *time.Time
}

type CreateCustomDomainInput struct {
	TenantID          string
	Hostname          string
	DNSRecordID       string
	TargetIP          string
	DNSStatus         string
	SSLStatus         string
	ProxyActive       bool
	IsPrimary         bool
	VerificationToken string
	Status            string
}

// HealthUpdate carries the mutable status/timestamp fields the reconciler is
// allowed to touch. Identity fields are deliberately absent.
type HealthUpdate struct {
	DNSStatus    string
	SSLStatus    string
	ProxyActive  bool
	Status       string
	VerifiedAt   *time.Time
	LastCheckAt  time.Time
	SSLExpiresAt *time.Time
}

type CustomDomainRepository interface {
	Create(ctx context.Context, input CreateCustomDomainInput) (*CustomDomain, error)
	FindByHostname(ctx context.Context, hostname string) (*CustomDomain, error)
	FindByTenantID(ctx context.Context, tenantID string) ([]CustomDomain, error)
	CountByTenantID(ctx context.Context, tenantID string) (int, error)
	ListAll(ctx context.Context) ([]CustomDomain, error)
	UpdateHealth(ctx context.Context, hostname string, update HealthUpdate) error
	Delete(ctx context.Context, hostname string) error
}
