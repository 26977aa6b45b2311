// Package urlvalidation guards outbound callbacks against server-side
// request forgery.
package urlvalidation

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Option configures URL validation behavior.
type Option func(*validationConfig)

// Resolver looks up the addresses of a host.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

type validationConfig struct {
	allowPrivate bool
	resolver     Resolver
}

// AllowPrivateIPs disables the private address check. Use only in tests
// and local development.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) {
		c.allowPrivate = true
	}
}

// WithResolver replaces the system resolver.
func WithResolver(r Resolver) Option {
	return func(c *validationConfig) {
		c.resolver = r
	}
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ValidateWebhookURL checks that a URL is safe to call back: http or https,
// and resolving only to public addresses.
func ValidateWebhookURL(rawURL string, opts ...Option) error {
	cfg := validationConfig{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(&cfg)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" {
		return fmt.Errorf("URL scheme %q not allowed; use http or https", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if cfg.allowPrivate {
		return nil
	}

	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{addr}
	} else {
		addrs, err = cfg.resolver.LookupNetIP(context.Background(), "ip", host)
		if err != nil {
			return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
		}
	}
	for _, addr := range addrs {
		if IsBlocked(addr) {
			return fmt.Errorf("URL resolves to private or reserved address %s", addr)
		}
	}
	return nil
}

// IsBlocked reports whether addr is private, loopback, link-local or
// otherwise reserved.
func IsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
