package validator

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopfabric/backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced time source shared by the validator and
// its cache.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestValidator(clock *fakeClock, ttl time.Duration) *Validator {
	v := New(Config{
		CNAMETarget:  "edge.shopfabric.io",
		ServerIP:     "203.0.113.10",
		ProbeTimeout: 300 * time.Millisecond,
		CacheTTL:     ttl,
	}, testLogger())
	v.now = clock.now
	v.cache = newResultCache(ttl, clock.now)
	return v
}

func TestResultCacheExpiry(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := newResultCache(10*time.Minute, clock.now)

	cache.put("shop.example.com", domain.ValidationResult{Hostname: "shop.example.com", DNSValid: true})

	if _, ok := cache.get("shop.example.com"); !ok {
		t.Fatal("expected cache hit immediately after put")
	}

	clock.advance(9 * time.Minute)
	if _, ok := cache.get("shop.example.com"); !ok {
		t.Error("expected cache hit within TTL")
	}

	clock.advance(2 * time.Minute)
	if _, ok := cache.get("shop.example.com"); ok {
		t.Error("expected cache miss after TTL")
	}
}

func TestResultCacheInvalidateIsPerHostname(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := newResultCache(10*time.Minute, clock.now)

	cache.put("a.example.com", domain.ValidationResult{Hostname: "a.example.com"})
	cache.put("b.example.com", domain.ValidationResult{Hostname: "b.example.com"})

	cache.invalidate("a.example.com")

	if _, ok := cache.get("a.example.com"); ok {
		t.Error("expected a.example.com to be invalidated")
	}
	if _, ok := cache.get("b.example.com"); !ok {
		t.Error("expected b.example.com to survive")
	}
}

func TestValidateReadsThroughCache(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	v := newTestValidator(clock, 10*time.Minute)

	var dials atomic.Int32
	v.dialAddr = func(hostname string) string {
		dials.Add(1)
		// Closed port: the probe fails fast and fail-closed.
		return "127.0.0.1:1"
	}

	first := v.Validate(context.Background(), "localhost")
	if first.SSLValid {
		t.Fatal("expected fail-closed result against a closed port")
	}

	second := v.Validate(context.Background(), "localhost")
	if dials.Load() != 1 {
		t.Errorf("expected cached result to skip the probe, got %d dials", dials.Load())
	}
	if second.CheckedAt != first.CheckedAt {
		t.Error("cached result should be returned unchanged")
	}

	v.Invalidate("localhost")
	v.Validate(context.Background(), "localhost")
	if dials.Load() != 2 {
		t.Errorf("expected invalidation to force a re-probe, got %d dials", dials.Load())
	}
}

func TestValidateSSLFailClosedOnRefusedConnection(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	v := newTestValidator(clock, time.Minute)
	v.dialAddr = func(hostname string) string { return "127.0.0.1:1" }

	result := v.ValidateSSL(context.Background(), "shop.example.com")

	if result.SSLValid {
		t.Error("expected SSLValid=false for refused connection")
	}
	if result.Reason == "" {
		t.Error("expected a reason for the failure")
	}
}

func TestValidateSSLTimeoutYieldsTimeoutReason(t *testing.T) {
	// A listener that accepts and then never speaks TLS stalls the handshake
	// until the probe deadline fires.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	clock := &fakeClock{current: time.Now()}
	v := newTestValidator(clock, time.Minute)
	v.probeTimeout = 150 * time.Millisecond
	v.dialAddr = func(hostname string) string { return ln.Addr().String() }

	result := v.ValidateSSL(context.Background(), "shop.example.com")

	if result.SSLValid {
		t.Error("expected SSLValid=false on handshake timeout")
	}
	if result.Reason != domain.ErrValidationTimeout.Error() {
		t.Errorf("expected timeout reason, got %q", result.Reason)
	}
}
