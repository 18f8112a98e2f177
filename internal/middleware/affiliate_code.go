package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lastbrain/edge/internal/affiliate"
	"github.com/lastbrain/edge/internal/metrics"
	"github.com/lastbrain/edge/internal/upstream"
)

// AffiliateCodeConfig configures the short-code resolver.
type AffiliateCodeConfig struct {
	Param       string // query parameter carrying the code, default "code"
	Secure      bool
	DefaultDays float64
}

// AffiliateCode resolves a short affiliate code against the backend and, on
// success, writes the attribution cookie and redirects to the target the
// backend chose. Upstream failures never surface to the client; the check
// declines and the request continues. Runs only after AffiliateToken
// declined: a self-verifying token always wins over a network lookup.
func AffiliateCode(client *upstream.Client, cfg AffiliateCodeConfig, logger *slog.Logger) Check {
	if cfg.Param == "" {
		cfg.Param = "code"
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = affiliate.DefaultCookieDays
	}

	return func(w http.ResponseWriter, r *http.Request) bool {
		code := r.URL.Query().Get(cfg.Param)
		if code == "" || !client.Configured() {
			return false
		}

		res, err := client.ResolveCode(r.Context(), code)
		if err != nil {
			logger.Warn("affiliate code resolution failed", "code", code, "error", err)
			metrics.Interceptions.WithLabelValues("affiliate_code", "decline").Inc()
			return false
		}
		if res.Payload.OwnerID == "" {
			logger.Warn("affiliate code resolved without owner_id", "code", code)
			metrics.Interceptions.WithLabelValues("affiliate_code", "decline").Inc()
			return false
		}

		days := cfg.DefaultDays
		if res.CookieDays != nil {
			days = *res.CookieDays
		}
		affiliate.WriteCookie(w, res.Payload.Normalize(time.Now()), affiliate.MaxAge(days), cfg.Secure)

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, redirectTarget(res.RedirectPath), http.StatusFound)
		metrics.Interceptions.WithLabelValues("affiliate_code", "redirect").Inc()
		logger.Info("affiliate code attributed", "code", code, "owner_id", res.Payload.OwnerID, "days", days)
		return true
	}
}

// redirectTarget passes absolute URLs through unchanged and roots relative
// paths at the current origin.
func redirectTarget(p string) string {
	if p == "" {
		return "/"
	}
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
