package dns

import (
	"context"
	"net"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
)

// startStubResolver runs a local DNS server answering from the given zone
// map. Keys are FQDNs; values are A record IPs.
func startStubResolver(t *testing.T, zone map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	server := &mdns.Server{
		PacketConn: pc,
		Handler: mdns.HandlerFunc(func(w mdns.ResponseWriter, req *mdns.Msg) {
			reply := new(mdns.Msg)
			reply.SetReply(req)

			q := req.Question[0]
			if ip, ok := zone[q.Name]; ok && q.Qtype == mdns.TypeA {
				rr, _ := mdns.NewRR(q.Name + " 60 IN A " + ip)
				reply.Answer = append(reply.Answer, rr)
			} else {
				reply.Rcode = mdns.RcodeNameError
			}

			w.WriteMsg(reply)
		}),
	}

	go server.ActivateAndServe()
	t.Cleanup(func() { server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestCheckPropagatedHostname(t *testing.T) {
	resolver := startStubResolver(t, map[string]string{
		"shop.example.com.": "203.0.113.10",
	})

	checker := NewPropagationChecker(resolver, 2*time.Second, testLogger())

	result := checker.Check(context.Background(), "shop.example.com")
	if !result.Propagated {
		t.Fatal("expected hostname to be reported propagated")
	}
	if len(result.Records) != 1 || result.Records[0] != "203.0.113.10" {
		t.Errorf("unexpected records: %v", result.Records)
	}
}

func TestCheckUnknownHostnameNotPropagated(t *testing.T) {
	resolver := startStubResolver(t, nil)

	checker := NewPropagationChecker(resolver, 2*time.Second, testLogger())

	result := checker.Check(context.Background(), "missing.example.com")
	if result.Propagated {
		t.Error("expected unknown hostname to be reported not propagated")
	}
}

func TestCheckUnreachableResolverFailsClosed(t *testing.T) {
	checker := NewPropagationChecker("127.0.0.1:1", 300*time.Millisecond, testLogger())

	start := time.Now()
	result := checker.Check(context.Background(), "shop.example.com")
	elapsed := time.Since(start)

	if result.Propagated {
		t.Error("unreachable resolver must report not propagated")
	}
	if elapsed > 3*time.Second {
		t.Errorf("check took too long: %v", elapsed)
	}
}
