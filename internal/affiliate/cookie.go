package affiliate

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// WriteCookie stores p as the lb_aff cookie. The JSON value is
// percent-encoded so it stays a valid cookie-octet sequence; integrity was
// already established when the token or code was verified, so the value
// itself is not signed.
func WriteCookie(w http.ResponseWriter, p Payload, maxAge int, secure bool) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    escapeValue(string(b)),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// ReadCookie returns the attribution payload from r, or nil if the cookie is
// absent or unreadable. Checkout code uses this to attach commission data to
// an order.
func ReadCookie(r *http.Request) *Payload {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	p := payloadFromMap(m)
	return &p
}

// escapeValue percent-encodes the cookie value the way the storefront's
// decodeURIComponent-based reader expects: spaces become %20, never "+",
// and JSON punctuation (quotes, commas, braces) is escaped so the value
// stays a plain cookie-octet sequence.
func escapeValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// maxCookieDays is the Max-Age ceiling; user agents cap cookie lifetimes at
// 400 days, so anything a token claims beyond that is meaningless.
const maxCookieDays = 400

// MaxAge converts a TTL in days to cookie seconds, clamped to [0, 400 days].
func MaxAge(days float64) int {
	if days <= 0 {
		return 0
	}
	if days > maxCookieDays {
		days = maxCookieDays
	}
	return int(days * 24 * 60 * 60)
}
