// Package middleware implements the edge interception chain: signed
// affiliate token resolution, short-code resolution, and the private-area
// session guard, run in that order on every inbound request.
package middleware

import (
	"net/http"
	"strings"

	"github.com/lastbrain/edge/internal/metrics"
)

// Check inspects a request and either writes a complete response (returning
// true) or declines (returning false) so the next check can run. Checks
// never surface errors to the client; every failure collapses to a decline
// or a redirect.
type Check func(http.ResponseWriter, *http.Request) bool

// DispatchConfig controls the interception chain.
type DispatchConfig struct {
	// SkipPrefixes lists path prefixes (static assets) that bypass all
	// checks.
	SkipPrefixes []string
}

// Dispatch runs checks in order; the first one to write a response wins and
// no further check runs. If none intercepts, the request falls through to
// next unchanged. The ordering matters: a self-verifying signed token must
// win over the code lookup, and both affiliate checks must resolve before
// the session guard because affiliate parameters may appear on any route,
// including protected ones.
func Dispatch(cfg DispatchConfig, checks ...Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !skipPath(cfg.SkipPrefixes, r.URL.Path) {
				for _, check := range checks {
					if check(w, r) {
						return
					}
				}
			}
			metrics.Interceptions.WithLabelValues("dispatch", "pass").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func skipPath(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
