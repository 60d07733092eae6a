package proxy

import (
	"fmt"
	"net"
	"strings"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Scheme returns "http" for localhost, *.localhost, and IP-literal domains,
// "https" for everything else.
func Scheme(domain string) string {
	if isLocalDomain(domain) {
		return "http"
	}
	return "https"
}

// URLs derives the three public endpoints of a workspace behind the proxy.
func URLs(domain, id string) types.ServiceURLs {
	base := fmt.Sprintf("%s://%s", Scheme(domain), hostForURL(domain))
	return types.ServiceURLs{
		Editor:  fmt.Sprintf("%s/%s/%s", base, RoleEditor, id),
		Desktop: fmt.Sprintf("%s/%s/%s", base, RoleDesktop, id),
		Web:     fmt.Sprintf("%s/%s/%s", base, RoleWeb, id),
	}
}

// URL derives a single endpoint; the maintainer polls the editor URL during
// readiness waits.
func URL(domain, id string, role Role) string {
	return fmt.Sprintf("%s://%s/%s/%s", Scheme(domain), hostForURL(domain), role, id)
}

func isLocalDomain(domain string) bool {
	host := domain
	if h, _, err := net.SplitHostPort(domain); err == nil {
		host = h
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	return net.ParseIP(host) != nil
}

// hostForURL brackets bare IPv6 literals so they survive in a URL.
func hostForURL(domain string) string {
	if strings.Contains(domain, ":") && net.ParseIP(domain) != nil {
		return "[" + domain + "]"
	}
	return domain
}
