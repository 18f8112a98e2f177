// Package server wires the interception chain in front of the storefront
// application origin.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lastbrain/edge/internal/middleware"
	"github.com/lastbrain/edge/internal/upstream"
)

// Config holds everything the edge needs to front the storefront app.
type Config struct {
	AppURL          string          // origin the edge proxies to
	Upstream        upstream.Config // backend API for code resolution and auth
	TokenSecret     string          // HMAC secret for signed affiliate tokens
	ProtectedPrefix string          // path prefix guarded by SessionGuard
	CookieDays      float64         // default attribution cookie TTL in days
	Production      bool            // drives Secure cookies and fail-closed policy
}

type Server struct {
	cfg      Config
	upstream *upstream.Client
	proxy    http.Handler
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	origin, err := url.Parse(cfg.AppURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid app origin %q", cfg.AppURL)
	}

	return &Server{
		cfg:      cfg,
		upstream: upstream.NewClient(cfg.Upstream),
		proxy:    httputil.NewSingleHostReverseProxy(origin),
		logger:   logger,
	}, nil
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Edge-local endpoints
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	policy := middleware.PolicyPermissive
	secure := false
	if s.cfg.Production {
		policy = middleware.PolicyStrict
		secure = true
	}

	dispatch := middleware.Dispatch(
		middleware.DispatchConfig{
			SkipPrefixes: []string{"/static/", "/assets/", "/favicon.ico"},
		},
		middleware.AffiliateToken(middleware.AffiliateTokenConfig{
			Secret:      s.cfg.TokenSecret,
			Secure:      secure,
			DefaultDays: s.cfg.CookieDays,
		}, s.logger.With("component", "affiliate_token")),
		middleware.AffiliateCode(s.upstream, middleware.AffiliateCodeConfig{
			Secure:      secure,
			DefaultDays: s.cfg.CookieDays,
		}, s.logger.With("component", "affiliate_code")),
		middleware.SessionGuard(s.upstream, middleware.SessionGuardConfig{
			Prefix: s.cfg.ProtectedPrefix,
			Policy: policy,
		}, s.logger.With("component", "session_guard")),
	)

	// Everything else runs the interception chain and proxies through.
	mux.Handle("/", dispatch(s.proxy))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
