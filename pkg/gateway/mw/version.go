package mw

import (
	"net/http"
	"strings"

	"github.com/lumina-press/lumina/pkg/core"
)

const (
	apiVersionHeader    = "X-Lumina-Version"
	supportedAPIVersion = "1"
)

// APIVersion rejects /v1 requests pinned to an unknown API version and
// echoes the served version. A missing header means the current version.
func APIVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isWebSocketUpgrade(r) || !isV1Path(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		for _, version := range headerTokens(r.Header, apiVersionHeader) {
			if version == supportedAPIVersion {
				continue
			}
			reqID, _ := RequestIDFrom(r.Context())
			WriteJSONError(w, http.StatusBadRequest, &core.Error{
				Type:      core.ErrInvalidRequest,
				Message:   "unsupported API version",
				Param:     apiVersionHeader,
				Code:      "unsupported_version",
				RequestID: reqID,
			})
			return
		}

		w.Header().Set(apiVersionHeader, supportedAPIVersion)
		next.ServeHTTP(w, r)
	})
}

func isV1Path(path string) bool {
	return path == "/v1" || strings.HasPrefix(path, "/v1/")
}

func isWebSocketUpgrade(r *http.Request) bool {
	hasUpgrade := false
	for _, tok := range headerTokens(r.Header, "Connection") {
		if strings.EqualFold(tok, "upgrade") {
			hasUpgrade = true
			break
		}
	}
	return hasUpgrade && strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}

// headerTokens splits every value of a comma-separated header.
func headerTokens(h http.Header, name string) []string {
	var out []string
	for _, value := range h.Values(name) {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
