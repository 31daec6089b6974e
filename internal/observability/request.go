package observability

import (
	"net"
	"net/http"
	"strings"
)

// Handshake metadata extracted from the upgrade request. The values feed
// audit events and connection telemetry; none of them are trusted for
// authorization decisions.

// RequestIDFromRequest returns the caller-supplied correlation id, if any.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// DeviceIDFromRequest returns the client device identifier, if any. Multiple
// devices of one user connect with distinct ids.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// IPFromRequest returns the originating client address, preferring the first
// hop recorded by the edge proxy over the socket peer.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
