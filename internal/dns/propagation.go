package dns

import (
	"context"
	"log/slog"
	"time"

	mdns "github.com/miekg/dns"
)

// PropagationChecker asks a public resolver whether a hostname is visible on
// the internet. It is deliberately independent of the provider API: a record
// accepted by the provider and a record resolvable worldwide are different
// facts.
type PropagationChecker struct {
	resolver string
	timeout  time.Duration
	client   *mdns.Client
	logger   *slog.Logger
}

type PropagationResult struct {
	Propagated bool
	Records    []string
}

func NewPropagationChecker(resolver string, timeout time.Duration, logger *slog.Logger) *PropagationChecker {
	return &PropagationChecker{
		resolver: resolver,
		timeout:  timeout,
		client: &mdns.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "dns_propagation"),
	}
}

// Check resolves hostname (CNAME first, then A) against the public resolver.
// It never returns an error: an unanswered or failed query within the timeout
// window reports Propagated=false.
func (p *PropagationChecker) Check(ctx context.Context, hostname string) PropagationResult {
	fqdn := mdns.Fqdn(hostname)

	if records := p.query(ctx, fqdn, mdns.TypeCNAME); len(records) > 0 {
		return PropagationResult{Propagated: true, Records: records}
	}

	if records := p.query(ctx, fqdn, mdns.TypeA); len(records) > 0 {
		return PropagationResult{Propagated: true, Records: records}
	}

	p.logger.Debug("hostname not yet visible at public resolver",
		"hostname", hostname,
		"resolver", p.resolver,
	)

	return PropagationResult{Propagated: false}
}

func (p *PropagationChecker) query(ctx context.Context, fqdn string, qtype uint16) []string {
	msg := new(mdns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.RecursionDesired = true

	reply, _, err := p.client.ExchangeContext(ctx, msg, p.resolver)
	if err != nil || reply == nil || reply.Rcode != mdns.RcodeSuccess {
		return nil
	}

	var records []string
	for _, answer := range reply.Answer {
		switch rr := answer.(type) {
		case *mdns.CNAME:
			records = append(records, rr.Target)
		case *mdns.A:
			records = append(records, rr.A.String())
		}
	}
	return records
}
