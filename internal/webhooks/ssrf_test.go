package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

// staticResolver maps hostnames to fixed addresses for tests.
type staticResolver map[string][]string

func (r staticResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		return nil, fmt.Errorf("no such host %s", host)
	}
	addrs := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return addrs, nil
}

func TestCheckLiteralAddresses(t *testing.T) {
	checker := NewDestinationChecker(false)
	ctx := context.Background()

	tests := []struct {
		addr    string
		blocked bool
	}{
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"[2001:db8::1]", false},
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"0.0.0.0", true},
		{"255.255.255.255", true},
		{"100.64.0.1", true},
		{"[::1]", true},
		{"[::]", true},
		{"[fc00::1]", true},
		{"[fd00::1]", true},
		{"[fe80::1]", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := checker.Check(ctx, "https://"+tt.addr+"/hooks")
			var blocked *ErrBlockedDestination
			if tt.blocked {
				if !errors.As(err, &blocked) {
					t.Errorf("expected blocked destination, got %v", err)
				}
			} else if err != nil {
				t.Errorf("expected %s allowed, got %v", tt.addr, err)
			}
		})
	}
}

func TestCheckResolvedAddresses(t *testing.T) {
	resolver := staticResolver{
		"public.example.com":  {"93.184.216.34"},
		"internal.attack.com": {"10.0.0.5"},
		"mixed.attack.com":    {"93.184.216.34", "192.168.0.1"},
	}
	checker := NewDestinationCheckerWithResolver(resolver, false)
	ctx := context.Background()

	if err := checker.Check(ctx, "https://public.example.com/hooks"); err != nil {
		t.Errorf("expected public host allowed, got %v", err)
	}

	var blocked *ErrBlockedDestination
	if err := checker.Check(ctx, "https://internal.attack.com/hooks"); !errors.As(err, &blocked) {
		t.Errorf("expected private resolution blocked, got %v", err)
	}

	// One bad record among good ones blocks the attempt.
	if err := checker.Check(ctx, "https://mixed.attack.com/hooks"); !errors.As(err, &blocked) {
		t.Errorf("expected mixed resolution blocked, got %v", err)
	}

	if err := checker.Check(ctx, "https://unknown.example.com/hooks"); err == nil {
		t.Error("expected resolution failure for unknown host")
	}
}

func TestCheckSchemeAndHost(t *testing.T) {
	checker := NewDestinationChecker(false)
	ctx := context.Background()

	var blocked *ErrBlockedDestination
	if err := checker.Check(ctx, "ftp://example.com/hooks"); !errors.As(err, &blocked) {
		t.Errorf("expected non-http scheme blocked, got %v", err)
	}
	if err := checker.Check(ctx, "file:///etc/passwd"); !errors.As(err, &blocked) {
		t.Errorf("expected file scheme blocked, got %v", err)
	}
	if err := checker.Check(ctx, "https:///hooks"); !errors.As(err, &blocked) {
		t.Errorf("expected missing host blocked, got %v", err)
	}
}

func TestCheckAllowLocal(t *testing.T) {
	checker := NewDestinationChecker(true)
	ctx := context.Background()

	if err := checker.Check(ctx, "http://127.0.0.1:9999/hooks"); err != nil {
		t.Errorf("expected loopback allowed with allowLocal, got %v", err)
	}
	if err := checker.Check(ctx, "http://localhost:9999/hooks"); err != nil {
		t.Errorf("expected localhost allowed with allowLocal, got %v", err)
	}
}
