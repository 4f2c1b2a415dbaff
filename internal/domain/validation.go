package domain

import "time"

// ValidationResult is the outcome of one real-time DNS + TLS probe for a
// hostname. It is ephemeral: cached briefly, never persisted.
type ValidationResult struct {
	Hostname        string
	DNSValid        bool
	SSLValid        bool
	ResolvedTarget  string
	Issuer          string
	ExpiresAt       time.Time
	DaysUntilExpiry int
	Reason          string
	CheckedAt       time.Time
}

func (r ValidationResult) OverallValid() bool {
	return r.DNSValid && r.SSLValid
}
