package webhooks

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// ErrBlockedDestination is returned when a webhook URL resolves to an address
// that must never receive tenant-triggered traffic.
type ErrBlockedDestination struct {
	Host   string
	Reason string
}

func (e *ErrBlockedDestination) Error() string {
	return fmt.Sprintf("destination %s blocked: %s", e.Host, e.Reason)
}

// Resolver resolves a hostname to IP addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DestinationChecker validates webhook URLs before each delivery attempt.
//
// Resolution happens fresh on every call. Caching a past verdict would let a
// tenant rebind a hostname to an internal address between attempts, so the
// answer is only trusted for the attempt it was produced for.
type DestinationChecker struct {
	resolver   Resolver
	allowLocal bool
}

// NewDestinationChecker creates a checker using the system resolver.
// allowLocal skips the address checks entirely (local development only).
func NewDestinationChecker(allowLocal bool) *DestinationChecker {
	return &DestinationChecker{resolver: net.DefaultResolver, allowLocal: allowLocal}
}

// NewDestinationCheckerWithResolver creates a checker with a custom resolver.
func NewDestinationCheckerWithResolver(resolver Resolver, allowLocal bool) *DestinationChecker {
	return &DestinationChecker{resolver: resolver, allowLocal: allowLocal}
}

// Check validates that rawURL is an absolute http(s) URL whose host resolves
// only to publicly routable addresses. Every resolved address must pass; one
// bad record blocks the whole attempt.
func (c *DestinationChecker) Check(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ErrBlockedDestination{Host: parsed.Host, Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	host := parsed.Hostname()
	if host == "" {
		return &ErrBlockedDestination{Host: parsed.Host, Reason: "missing host"}
	}

	if c.allowLocal {
		return nil
	}

	// A literal IP skips DNS but still gets the address checks.
	if ip := net.ParseIP(host); ip != nil {
		if reason := blockedAddressReason(ip); reason != "" {
			return &ErrBlockedDestination{Host: host, Reason: reason}
		}
		return nil
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}

	for _, addr := range addrs {
		if reason := blockedAddressReason(addr.IP); reason != "" {
			return &ErrBlockedDestination{Host: host, Reason: fmt.Sprintf("resolves to %s (%s)", addr.IP, reason)}
		}
	}
	return nil
}

// blockedAddressReason returns a non-empty reason if ip must not be dialed.
func blockedAddressReason(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback address"
	case ip.IsUnspecified():
		return "unspecified address"
	case ip.IsPrivate():
		return "private address"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local address"
	case ip.IsMulticast():
		return "multicast address"
	case ip.Equal(net.IPv4bcast):
		return "broadcast address"
	case isCGNAT(ip):
		return "carrier-grade NAT address"
	}
	return ""
}

var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// isCGNAT reports whether ip is in 100.64.0.0/10, which IsPrivate does not cover.
func isCGNAT(ip net.IP) bool {
	v4 := ip.To4()
	return v4 != nil && cgnatBlock.Contains(v4)
}
