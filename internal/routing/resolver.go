package routing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/wesleywu/routefwd/internal/logger"
)

// HostResolver turns a hostname into its IPv4 addresses in resolver order
type HostResolver interface {
	LookupIPv4(ctx context.Context, host string) ([]net.IP, error)
}

// ErrNoAddress is returned when a name resolves but carries no IPv4 address
var ErrNoAddress = errors.New("no IPv4 address")

// DNSResolver queries the configured servers directly, or the system
// resolver when none are configured.
type DNSResolver struct {
	servers []string
	timeout time.Duration
	client  *dns.Client
	system  *net.Resolver
	logger  *logger.Logger
}

// NewDNSResolver creates a resolver; servers may omit the port
func NewDNSResolver(servers []string, timeout time.Duration, log *logger.Logger) *DNSResolver {
	addrs := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		addrs = append(addrs, s)
	}

	c := new(dns.Client)
	c.Net = "udp"
	c.Timeout = timeout

	return &DNSResolver{
		servers: addrs,
		timeout: timeout,
		client:  c,
		system:  net.DefaultResolver,
		logger:  log.WithComponent("resolver"),
	}
}

func (r *DNSResolver) LookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	if len(r.servers) == 0 {
		return r.lookupSystem(ctx, host)
	}
	return r.lookupServers(ctx, host)
}

func (r *DNSResolver) lookupSystem(ctx context.Context, host string) ([]net.IP, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ips, err := r.system.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}

	out := make([]net.IP, 0, len(ips))
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			out = append(out, ip4)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
	}
	return out, nil
}

// lookupServers asks each server in turn and returns the first usable answer.
// The client timeout bounds each exchange separately.
func (r *DNSResolver) lookupServers(ctx context.Context, host string) ([]net.IP, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			r.logger.Debug("dns exchange failed", "server", server, "host", host, "error", err)
			lastErr = err
			continue
		}

		if resp.Rcode != dns.RcodeSuccess {
			// an authoritative negative answer is final
			return nil, fmt.Errorf("%s: %s from %s", host, dns.RcodeToString[resp.Rcode], server)
		}

		var ips []net.IP
		for _, ans := range resp.Answer {
			if a, ok := ans.(*dns.A); ok {
				ips = append(ips, a.A.To4())
			}
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
		}
		return ips, nil
	}

	return nil, fmt.Errorf("%s: all dns servers failed: %w", host, lastErr)
}
