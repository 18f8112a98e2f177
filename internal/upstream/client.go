// Package upstream talks to the storefront backend API: affiliate code
// resolution and customer session verification.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lastbrain/edge/internal/affiliate"
)

// AuthHeader carries the shared secret on every call to the backend.
const AuthHeader = "x-lastbrain-token"

// ErrSessionInvalid reports that the backend rejected a customer token as
// not belonging to a valid session (401/403), as opposed to the backend
// being unreachable or broken.
var ErrSessionInvalid = errors.New("upstream: session invalid")

// Config holds backend API settings.
type Config struct {
	BaseURL string
	Token   string // shared secret sent as AuthHeader
	Timeout time.Duration
}

// Client issues the two synchronous backend calls the edge depends on.
// Calls are never retried; a failure is terminal for the request it serves.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether both the base URL and the shared secret are set.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Token != ""
}

// endpoint joins the base URL and path without missing or double slashes.
func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Resolution is the backend's answer for a short affiliate code: a
// ready-to-store payload, where to send the visitor, and an optional TTL.
type Resolution struct {
	Payload      affiliate.Payload `json:"payload"`
	RedirectPath string            `json:"redirectPath"`
	CookieDays   *float64          `json:"cookieDays,omitempty"`
}

// ResolveCode exchanges a short affiliate code for an attribution payload
// and redirect target.
func (c *Client) ResolveCode(ctx context.Context, code string) (*Resolution, error) {
	u := c.endpoint("/api/affiliate/resolve") + "?code=" + url.QueryEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(AuthHeader, c.cfg.Token)
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("resolve code: status %d", resp.StatusCode)
	}

	var res Resolution
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode resolution: %w", err)
	}
	return &res, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

// VerifyCustomer re-validates a customer session token against the backend.
// A nil return means the session is valid. ErrSessionInvalid means the
// backend rejected it; any other error means the backend could not answer.
func (c *Client) VerifyCustomer(ctx context.Context, token string) error {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/auth/customer"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AuthHeader, c.cfg.Token)
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verify customer: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrSessionInvalid
	default:
		return fmt.Errorf("verify customer: status %d", resp.StatusCode)
	}
}
