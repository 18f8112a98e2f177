package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lastbrain/edge/internal/metrics"
	"github.com/lastbrain/edge/internal/upstream"
)

// Policy decides what the session guard does when the backend cannot answer
// for a session: misconfigured credentials, network failure, or an
// unexpected status.
type Policy int

const (
	// PolicyPermissive lets matching requests through on backend failure,
	// so local development works without a live backend.
	PolicyPermissive Policy = iota
	// PolicyStrict redirects to the logout page on backend failure.
	PolicyStrict
)

// SessionGuardConfig configures the private-area guard.
type SessionGuardConfig struct {
	Prefix     string // protected path prefix, default "/private"
	CookieName string // customer session cookie, default "x-lastbrain-user-token"
	LoginPath  string
	LogoutPath string
	Policy     Policy
}

// SessionGuard requires a valid customer session for everything under the
// protected prefix. The cookie is re-validated against the backend on every
// request, never cached, so a revoked session takes effect immediately.
// Outcomes per matching request: pass, redirect to login (no or invalid
// session), or redirect to logout (backend failure under PolicyStrict).
func SessionGuard(client *upstream.Client, cfg SessionGuardConfig, logger *slog.Logger) Check {
	if cfg.Prefix == "" {
		cfg.Prefix = "/private"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "x-lastbrain-user-token"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = "/logout"
	}

	return func(w http.ResponseWriter, r *http.Request) bool {
		if !underPrefix(r.URL.Path, cfg.Prefix) {
			return false
		}

		cookie, err := r.Cookie(cfg.CookieName)
		if err != nil || cookie.Value == "" {
			metrics.Interceptions.WithLabelValues("session_guard", "login").Inc()
			http.Redirect(w, r, cfg.LoginPath, http.StatusFound)
			return true
		}

		if !client.Configured() {
			return backendFailure(w, r, cfg, logger, errors.New("backend credentials not configured"))
		}

		switch err := client.VerifyCustomer(r.Context(), cookie.Value); {
		case err == nil:
			metrics.Interceptions.WithLabelValues("session_guard", "allow").Inc()
			return false
		case errors.Is(err, upstream.ErrSessionInvalid):
			// The session is invalid, not expired-but-recoverable: back to
			// login, without implying the user did something wrong.
			logger.Info("customer session rejected", "path", r.URL.Path)
			metrics.Interceptions.WithLabelValues("session_guard", "login").Inc()
			http.Redirect(w, r, cfg.LoginPath, http.StatusFound)
			return true
		default:
			return backendFailure(w, r, cfg, logger, err)
		}
	}
}

func backendFailure(w http.ResponseWriter, r *http.Request, cfg SessionGuardConfig, logger *slog.Logger, err error) bool {
	if cfg.Policy == PolicyPermissive {
		logger.Warn("session check unavailable, letting request through", "path", r.URL.Path, "error", err)
		metrics.Interceptions.WithLabelValues("session_guard", "fail_open").Inc()
		return false
	}
	logger.Error("session check unavailable, denying", "path", r.URL.Path, "error", err)
	metrics.Interceptions.WithLabelValues("session_guard", "logout").Inc()
	http.Redirect(w, r, cfg.LogoutPath, http.StatusFound)
	return true
}

// underPrefix matches the prefix itself and anything below it, without
// catching sibling paths like /privateer.
func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
