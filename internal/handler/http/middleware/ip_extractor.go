package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
)

// IPExtractor resolves the client IP address used as a rate limit key.
// Hook endpoints carry no authentication, so the IP is the only identity
// available; picking the wrong one lets a client rotate keys at will.
type IPExtractor interface {
	// ExtractIP returns the client IP for the request, or an error when
	// no usable address can be determined.
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor takes the IP from the TCP connection (r.RemoteAddr).
// The connection address cannot be spoofed by the client, which makes this
// the safe default when the service is reachable without a reverse proxy.
type RemoteAddrExtractor struct{}

// ExtractIP strips the port from r.RemoteAddr and returns the bare IP.
// Handles IPv4 ("192.168.1.1:54321"), bracketed IPv6 ("[2001:db8::1]:8080")
// and portless addresses.
func (e *RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig lists the reverse proxies whose forwarding headers are
// believed. Only requests arriving from one of these addresses may override
// the connection IP via X-Forwarded-For or X-Real-IP.
type TrustedProxyConfig struct {
	// Enabled gates all header-based extraction. When false the headers
	// are ignored entirely.
	Enabled bool

	// AllowedCIDRs holds the trusted proxy ranges. Single IPs are stored
	// as /32 or /128 prefixes.
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether remoteAddr belongs to one of the configured
// proxy ranges. Parse failures count as untrusted.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// LoadTrustedProxyConfig reads the proxy trust settings from the environment:
//
//   - RATELIMIT_TRUST_PROXY: "true" enables header-based extraction (default off)
//   - RATELIMIT_TRUSTED_PROXIES: comma-separated IPs or CIDR ranges,
//     e.g. "10.0.0.1" or "10.0.0.0/8,2001:db8::/32"
//
// Misconfiguration fails closed: enabling trust without naming any proxy, or
// naming an unparseable one, returns an error so startup aborts instead of
// silently trusting forged headers.
func LoadTrustedProxyConfig() (*TrustedProxyConfig, error) {
	enabled := os.Getenv("RATELIMIT_TRUST_PROXY") == "true"

	config := &TrustedProxyConfig{
		Enabled:      enabled,
		AllowedCIDRs: []netip.Prefix{},
	}

	if !enabled {
		return config, nil
	}

	proxiesStr := strings.TrimSpace(os.Getenv("RATELIMIT_TRUSTED_PROXIES"))
	if proxiesStr == "" {
		return nil, fmt.Errorf("RATELIMIT_TRUST_PROXY is enabled but RATELIMIT_TRUSTED_PROXIES is empty")
	}

	for _, proxyStr := range strings.Split(proxiesStr, ",") {
		proxyStr = strings.TrimSpace(proxyStr)
		if proxyStr == "" {
			continue
		}

		prefix, err := netip.ParsePrefix(proxyStr)
		if err != nil {
			// Not CIDR notation; accept a bare IP and widen it to a
			// single-address prefix.
			ip, ipErr := netip.ParseAddr(proxyStr)
			if ipErr != nil {
				return nil, fmt.Errorf("invalid IP or CIDR format '%s': must be valid IP address or CIDR notation (e.g., '192.168.1.1' or '10.0.0.0/8')", proxyStr)
			}

			if ip.Is4() {
				prefix = netip.PrefixFrom(ip, 32)
			} else {
				prefix = netip.PrefixFrom(ip, 128)
			}
		}

		config.AllowedCIDRs = append(config.AllowedCIDRs, prefix)
	}

	if len(config.AllowedCIDRs) == 0 {
		return nil, fmt.Errorf("RATELIMIT_TRUST_PROXY is enabled but no valid proxies found in RATELIMIT_TRUSTED_PROXIES")
	}

	return config, nil
}

// TrustedProxyExtractor reads the client IP from forwarding headers, but only
// when the request arrived through a trusted proxy. Untrusted sources fall
// back to the connection address, which blocks limit-bypass via forged
// X-Forwarded-For values.
//
// Header priority for trusted sources: X-Forwarded-For (first entry), then
// X-Real-IP, then RemoteAddr.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

// NewTrustedProxyExtractor builds an extractor for the given trust config.
func NewTrustedProxyExtractor(config TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{
		config: config,
	}
}

// ExtractIP resolves the client IP. With trust disabled it behaves exactly
// like RemoteAddrExtractor. With trust enabled, forwarding headers are used
// only when the peer is a configured proxy; otherwise the headers are ignored
// and a warning is logged, since a forged header on a direct connection is a
// spoofing attempt.
func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled {
		return extractIPFromAddr(r.RemoteAddr)
	}

	if !e.config.IsTrusted(r.RemoteAddr) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			slog.Warn("untrusted proxy attempting to set X-Forwarded-For",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_forwarded_for", xff),
			)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			slog.Warn("untrusted proxy attempting to set X-Real-IP",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_real_ip", xri),
			)
		}

		return extractIPFromAddr(r.RemoteAddr)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseForwardedIP(xff); ip != "" {
			return ip, nil
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String(), nil
		}
	}

	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr parses "host:port" or a bare IP into the IP alone.
func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present; the address may still be a plain IP.
		if ip := net.ParseIP(addr); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return host, nil
}

// parseForwardedIP returns the first valid IP from a comma-separated
// X-Forwarded-For value ("client, proxy1, proxy2"), or "" when the leading
// entry is not an IP.
func parseForwardedIP(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			ip := net.ParseIP(strings.TrimSpace(s[:i]))
			if ip != nil {
				return ip.String()
			}
			return ""
		}
	}

	if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
		return ip.String()
	}
	return ""
}
