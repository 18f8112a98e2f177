package affiliate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strings"
)

// ErrInvalidToken covers every way a signed token can be unusable: wrong
// segment count, undecodable payload, signature mismatch. Callers get no
// more detail than that; a bad token is simply ignored.
var ErrInvalidToken = errors.New("affiliate: invalid token")

// TokenPayload is the signed-token superset of Payload: the attribution
// record plus an optional cookie TTL override.
type TokenPayload struct {
	Payload
	CookieDays *float64 `json:"cookie_days,omitempty"`
}

// DecodeToken verifies and decodes a signed affiliate token of the form
// base64url(JSON) "." base64url(HMAC-SHA256(secret, first segment)).
// The MAC covers the first segment as transmitted, not the decoded bytes.
func DecodeToken(token, secret string) (TokenPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TokenPayload{}, ErrInvalidToken
	}

	if !hmac.Equal([]byte(sign(parts[0], secret)), []byte(parts[1])) {
		return TokenPayload{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
	if err != nil {
		return TokenPayload{}, ErrInvalidToken
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return TokenPayload{}, ErrInvalidToken
	}

	tp := TokenPayload{Payload: payloadFromMap(m)}
	if d, ok := numberField(m, "cookie_days"); ok && !math.IsNaN(d) && !math.IsInf(d, 0) {
		tp.CookieDays = &d
	}
	return tp, nil
}

// EncodeToken signs p into the wire format consumed by DecodeToken.
func EncodeToken(p TokenPayload, secret string) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	seg := base64.RawURLEncoding.EncodeToString(b)
	return seg + "." + sign(seg, secret), nil
}

func sign(segment, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(segment))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
