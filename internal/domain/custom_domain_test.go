package domain

import "testing"

func TestDeriveHealthPrecedence(t *testing.T) {
	tests := []struct {
		name          string
		dnsConfigured bool
		proxyActive   bool
		sslValid      bool
		want          HealthBucket
	}{
		{"nothing configured", false, false, false, HealthDNSPending},
		{"dns missing wins over proxy and ssl", false, true, true, HealthDNSPending},
		{"proxy missing wins over ssl", true, false, true, HealthNginxPending},
		{"ssl pending", true, true, false, HealthSSLPending},
		{"fully healthy", true, true, true, HealthActive},
		{"proxy and ssl missing reports proxy first", true, false, false, HealthNginxPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveHealth(tt.dnsConfigured, tt.proxyActive, tt.sslValid)
			if got != tt.want {
				t.Errorf("DeriveHealth(%v, %v, %v) = %s, want %s",
					tt.dnsConfigured, tt.proxyActive, tt.sslValid, got, tt.want)
			}
		})
	}
}

func TestValidHostname(t *testing.T) {
	tests := []struct {
		hostname string
		want     bool
	}{
		{"shop.example.com", true},
		{"a.co", true},
		{"www.my-store.example.com", true},
		{"xn--bcher-kva.example", true},
		{"shop", false},
		{"a.b", false},
		{"", false},
		{".example.com", false},
		{"shop..example.com", false},
		{"-shop.example.com", false},
		{"shop-.example.com", false},
		{"shop.example.com/path", false},
		{"shop example.com", false},
		{"shop_1.example.com", false},
	}

	for _, tt := range tests {
		if got := ValidHostname(tt.hostname); got != tt.want {
			t.Errorf("ValidHostname(%q) = %v, want %v", tt.hostname, got, tt.want)
		}
	}
}

func TestValidHostnameLengthLimits(t *testing.T) {
	longLabel := make([]byte, 64)
	for i := range longLabel {
		longLabel[i] = 'a'
	}
	if ValidHostname(string(longLabel)+".example.com") {
		t.Error("expected 64-char label to be rejected")
	}

	label := string(longLabel[:63])
	ok := label + "." + label + "." + label + ".example.com"
	if len(ok) <= 253 && !ValidHostname(ok) {
		t.Errorf("expected %d-char hostname with 63-char labels to be accepted", len(ok))
	}

	tooLong := label + "." + label + "." + label + "." + label + ".example.com"
	if ValidHostname(tooLong) {
		t.Errorf("expected %d-char hostname to be rejected", len(tooLong))
	}
}
