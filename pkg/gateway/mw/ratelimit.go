package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/ratelimit"
)

// RateLimit throttles the one-shot endpoints per client address. Reads, health
// checks, metrics and the live upgrade pass through.
func RateLimit(cfg config.Config, limiter *ratelimit.Limiter, onLimited func(key string), next http.Handler) http.Handler {
	if !limiter.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		key := ClientKey(r, cfg.TrustProxyHeaders)
		dec := limiter.Allow(key, time.Now())
		if !dec.Allowed {
			if onLimited != nil {
				onLimited(key)
			}
			reqID, _ := RequestIDFrom(r.Context())
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
			}
			WriteJSONError(w, http.StatusTooManyRequests, &core.Error{
				Type:      core.ErrRateLimit,
				Message:   "rate limit exceeded",
				RequestID: reqID,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
