package lookup

import (
	"net"
	"net/url"
	"strings"
)

// OriginInput is everything a request offers for identifying the calling site.
type OriginInput struct {
	Origin       string // Origin header
	Referer      string // Referer header
	HeaderDomain string // custom domain header
	ParamDomain  string // explicit domain parameter
	ClientIP     string // remote address, host or host:port
}

// ResolveOrigin picks the billing domain with strict precedence:
// Origin host, Referer host, custom header, domain parameter, client IP.
// It never fails; with nothing usable it returns the client IP (possibly empty).
func ResolveOrigin(in OriginInput) string {
	for _, candidate := range []string{in.Origin, in.Referer, in.HeaderDomain, in.ParamDomain} {
		if host := normalizeHost(candidate); host != "" {
			return host
		}
	}
	return clientHost(in.ClientIP)
}

// normalizeHost extracts a lower-case hostname from a URL or bare host,
// dropping any port, path and leading "www.".
func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	return strings.TrimPrefix(host, "www.")
}

func clientHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
