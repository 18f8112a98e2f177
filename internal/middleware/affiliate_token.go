package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lastbrain/edge/internal/affiliate"
	"github.com/lastbrain/edge/internal/metrics"
)

// AffiliateTokenConfig configures the signed-token resolver.
type AffiliateTokenConfig struct {
	Secret      string  // HMAC secret; empty disables the check
	Param       string  // query parameter carrying the token, default "aff"
	Secure      bool    // mark the attribution cookie Secure
	DefaultDays float64 // cookie TTL when the token has no cookie_days
}

// AffiliateToken converts a valid signed token in the query string into the
// attribution cookie and redirects to the same URL with the parameter
// stripped. A malformed, tampered, or ownerless token never blocks
// navigation: the check declines and traffic continues.
func AffiliateToken(cfg AffiliateTokenConfig, logger *slog.Logger) Check {
	if cfg.Param == "" {
		cfg.Param = "aff"
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = affiliate.DefaultCookieDays
	}

	return func(w http.ResponseWriter, r *http.Request) bool {
		token := r.URL.Query().Get(cfg.Param)
		if token == "" || cfg.Secret == "" {
			return false
		}

		tp, err := affiliate.DecodeToken(token, cfg.Secret)
		if err != nil {
			logger.Debug("affiliate token rejected", "path", r.URL.Path)
			metrics.Interceptions.WithLabelValues("affiliate_token", "decline").Inc()
			return false
		}
		if tp.OwnerID == "" {
			// nothing to credit the commission to
			logger.Debug("affiliate token without owner_id", "path", r.URL.Path)
			metrics.Interceptions.WithLabelValues("affiliate_token", "decline").Inc()
			return false
		}

		days := cfg.DefaultDays
		if tp.CookieDays != nil {
			days = *tp.CookieDays
		}
		affiliate.WriteCookie(w, tp.Payload.Normalize(time.Now()), affiliate.MaxAge(days), cfg.Secure)

		q := r.URL.Query()
		q.Del(cfg.Param)
		dest := *r.URL
		dest.RawQuery = q.Encode()

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, dest.RequestURI(), http.StatusFound)
		metrics.Interceptions.WithLabelValues("affiliate_token", "redirect").Inc()
		logger.Info("affiliate token attributed", "owner_id", tp.OwnerID, "days", days)
		return true
	}
}
