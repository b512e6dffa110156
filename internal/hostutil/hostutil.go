// Package hostutil normalizes the search endpoint's base URL.
package hostutil

import (
	"net"
	"strings"
)

// Normalize turns whatever the user typed for base_url into a URL
// without a trailing slash:
//   - empty stays empty
//   - a bare localhost or loopback host gets http://
//   - any other bare host gets https://
//   - an explicit scheme is kept
func Normalize(raw string) string {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		return s
	}
	host, _, _ := strings.Cut(s, "/")
	if IsLocalhost(host) {
		return "http://" + s
	}
	return "https://" + s
}

// IsLocalhost reports whether host (optionally with a port) is
// localhost, a .localhost subdomain, or a loopback address.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
