package mw

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey identifies the caller for rate limiting. Proxy headers are only
// consulted when trustProxyHeaders is set.
func ClientKey(r *http.Request, trustProxyHeaders bool) string {
	if ip := clientIP(r, trustProxyHeaders); ip != "" {
		return "ip_" + ip
	}
	return "anonymous"
}

func clientIP(r *http.Request, trustProxyHeaders bool) string {
	if r == nil {
		return ""
	}

	if trustProxyHeaders {
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if raw := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); raw != "" {
			// XFF can be "client, proxy1, proxy2". Take the left-most.
			if ip := parseIP(strings.Split(raw, ",")[0]); ip != "" {
				return ip
			}
		}
	}

	return parseIP(r.RemoteAddr)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
