package routing

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/routefwd/internal/logger"
)

// startDNSServer serves a fixed zone on a loopback UDP port
func startDNSServer(t *testing.T, records map[string][]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)

		q := r.Question[0]
		answers, ok := records[q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}

		for _, a := range answers {
			rr, err := dns.NewRR(a)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestDNSResolverServers(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"multi.example.": {
			"multi.example. 60 IN CNAME edge.example.",
			"edge.example. 60 IN A 9.9.9.9",
			"edge.example. 60 IN A 9.9.9.10",
		},
		"v6only.example.": {"v6only.example. 60 IN AAAA 2001:db8::1"},
	})

	r := NewDNSResolver([]string{addr}, 2*time.Second, logger.Discard())

	ips, err := r.LookupIPv4(context.Background(), "multi.example")
	require.NoError(t, err)
	require.Len(t, ips, 2)
	assert.Equal(t, "9.9.9.9", ips[0].String())
	assert.Equal(t, "9.9.9.10", ips[1].String())

	_, err = r.LookupIPv4(context.Background(), "v6only.example")
	assert.True(t, errors.Is(err, ErrNoAddress))

	_, err = r.LookupIPv4(context.Background(), "missing.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NXDOMAIN")
}

func TestDNSResolverFallsThroughDeadServer(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"ok.example.": {"ok.example. 60 IN A 1.2.3.4"},
	})

	// nothing listens on the discard port
	r := NewDNSResolver([]string{"127.0.0.1:9", addr}, 500*time.Millisecond, logger.Discard())

	ips, err := r.LookupIPv4(context.Background(), "ok.example")
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "1.2.3.4", ips[0].String())
}

func TestNewDNSResolverAddsPort(t *testing.T) {
	r := NewDNSResolver([]string{"223.5.5.5", "8.8.8.8:5353"}, time.Second, logger.Discard())
	assert.Equal(t, []string{"223.5.5.5:53", "8.8.8.8:5353"}, r.servers)
}

func TestDNSResolverSystemLiteral(t *testing.T) {
	r := NewDNSResolver(nil, time.Second, logger.Discard())

	// literal addresses never leave the process
	ips, err := r.LookupIPv4(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "127.0.0.1", ips[0].String())
}
