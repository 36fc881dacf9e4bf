package utils

import (
	"net"
	"net/http"
	"strings"
)

// ExtractClientIP returns the caller address of a bridge request.
// It prefers the first X-Forwarded-For entry, then X-Real-IP, then the
// host part of RemoteAddr. The bridge normally sits behind nothing, but a
// dev server proxying the view layer sets the forwarding headers.
func ExtractClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsLoopback reports whether ip is a loopback address.
func IsLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
