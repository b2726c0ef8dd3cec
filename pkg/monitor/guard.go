package monitor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/miekg/dns"
)

// Guard validates probe targets against the SSRF rules: scheme/port
// allowlists, and IP-literal/DNS-resolved blocklists. A Guard is shared by
// every probe attempt; DevMode disables the port and IP blocks (the scheme
// check always applies), mirroring the source's global dev-mode flag.
type Guard struct {
	DevMode    bool
	Resolver   string // "host:port" of a custom DNS resolver; empty uses net.DefaultResolver
	dnsClient  *dns.Client
}

// NewGuard builds a Guard. If resolver is non-empty, DNS lookups for
// non-literal hosts are issued directly against it via miekg/dns; otherwise
// the guard falls back to the standard library resolver.
func NewGuard(devMode bool, resolver string) *Guard {
	return &Guard{
		DevMode:   devMode,
		Resolver:  resolver,
		dnsClient: &dns.Client{},
	}
}

// GuardError pairs a terminal ReasonCode with a human-readable message.
type GuardError struct {
	Reason  ReasonCode
	Message string
}

func (e *GuardError) Error() string { return e.Message }

func newGuardErr(reason ReasonCode, format string, args ...interface{}) *GuardError {
	return &GuardError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// GuardedTarget is the result of a successful validation: the IPv6-mapped
// address the caller must connect to.
type GuardedTarget struct {
	ResolvedIP net.IP
}

// ValidateTarget runs the full scheme/port/IP validation pipeline for u.
// It must be re-run on every redirect hop; the client must never connect to
// an address that was not validated on that exact hop.
func (g *Guard) ValidateTarget(ctx context.Context, u *url.URL) (*GuardedTarget, error) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, newGuardErr(ReasonSchemeBlocked, "scheme %q is not allowed", u.Scheme)
	}

	if !g.isAllowedPort(u) {
		return nil, newGuardErr(ReasonPortBlocked, "port is not allowed")
	}

	ip, err := g.resolveIP(ctx, u)
	if err != nil {
		return nil, err
	}
	return &GuardedTarget{ResolvedIP: ip}, nil
}

func (g *Guard) isAllowedPort(u *url.URL) bool {
	if g.DevMode {
		return true
	}
	port := portOrDefault(u)
	return port == 80 || port == 443
}

func portOrDefault(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

func (g *Guard) resolveIP(ctx context.Context, u *url.URL) (net.IP, error) {
	host := u.Hostname()
	if host == "" {
		return nil, newGuardErr(ReasonInvalidHost, "missing host")
	}

	if literal := net.ParseIP(host); literal != nil {
		if g.isBlockedIP(literal) {
			return nil, newGuardErr(ReasonBlockedIPLiteral, "target IP is not allowed")
		}
		return toV6(literal), nil
	}

	addrs, err := g.lookupHost(ctx, host)
	if err != nil {
		return nil, newGuardErr(ReasonDNSError, "dns lookup failed: %v", err)
	}

	for _, ip := range addrs {
		if !g.isBlockedIP(ip) {
			return toV6(ip), nil
		}
	}
	return nil, newGuardErr(ReasonDNSBlocked, "all resolved IPs are blocked")
}

// lookupHost resolves host to a list of IPs, preferring the configured
// miekg/dns resolver and falling back to the standard library resolver
// when none is configured.
func (g *Guard) lookupHost(ctx context.Context, host string) ([]net.IP, error) {
	if g.Resolver == "" {
		return net.DefaultResolver.LookupIP(ctx, "ip", host)
	}

	var ips []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		resp, _, err := g.dnsClient.ExchangeContext(ctx, msg, g.Resolver)
		if err != nil {
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				ips = append(ips, rec.A)
			case *dns.AAAA:
				ips = append(ips, rec.AAAA)
			}
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no A/AAAA records for %s", host)
	}
	return ips, nil
}

func (g *Guard) isBlockedIP(ip net.IP) bool {
	if g.DevMode {
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.IsPrivate() ||
			v4.IsLinkLocalUnicast() ||
			v4.IsLoopback() ||
			isIPv4Broadcast(v4) ||
			isIPv4Documentation(v4) ||
			v4.IsUnspecified()
	}
	return ip.IsLoopback() ||
		isUniqueLocal(ip) ||
		ip.IsUnspecified() ||
		ip.IsMulticast() ||
		ip.IsLinkLocalUnicast()
}

func isIPv4Broadcast(v4 net.IP) bool {
	return v4.Equal(net.IPv4(255, 255, 255, 255))
}

// isIPv4Documentation reports membership in the TEST-NET ranges reserved by
// RFC 5737 (192.0.2.0/24, 198.51.100.0/24, 203.0.113.0/24).
func isIPv4Documentation(v4 net.IP) bool {
	for _, cidr := range []string{"192.0.2.0/24", "198.51.100.0/24", "203.0.113.0/24"} {
		_, block, _ := net.ParseCIDR(cidr)
		if block.Contains(v4) {
			return true
		}
	}
	return false
}

// isUniqueLocal reports membership in fc00::/7 (ULA).
func isUniqueLocal(ip net.IP) bool {
	_, block, _ := net.ParseCIDR("fc00::/7")
	return block.Contains(ip)
}

func toV6(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4.To16()
	}
	return ip
}
