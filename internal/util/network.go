package util

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

// GenerateRequestID returns a random v4 uuid used to correlate log lines
func GenerateRequestID() string {
	return uuid.NewString()
}

// ParseTrustedCIDRs parses the reverse proxy ranges whose forwarding headers
// we believe. Blank entries are skipped, a bare address is a single host.
func ParseTrustedCIDRs(cidrStrings []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range cidrStrings {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", raw, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP returns the address used for rate limiting. Forwarding headers
// are only honoured when the direct peer is a trusted proxy, and
// X-Forwarded-For is read right to left skipping further trusted hops so a
// client can't pick its own address by prepending entries.
func GetClientIP(r *http.Request, trustProxyHeaders bool, trusted []netip.Prefix) string {
	remote := r.RemoteAddr
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		remote = ap.Addr().Unmap().String()
	}

	if !trustProxyHeaders {
		return remote
	}
	peer, err := netip.ParseAddr(remote)
	if err != nil || !isTrusted(peer, trusted) {
		return remote
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				break
			}
			if !isTrusted(addr, trusted) || i == 0 {
				return addr.Unmap().String()
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remote
}
