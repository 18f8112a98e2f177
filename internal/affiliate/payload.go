// Package affiliate implements the attribution data model: the payload
// recorded when a visitor arrives through a referral link, the signed token
// that carries it on the wire, and the lb_aff cookie it ends up in.
package affiliate

import "time"

const (
	// CookieName is the attribution cookie read later by checkout logic
	// to attach commission data to an order.
	CookieName = "lb_aff"

	// DefaultCookieDays is the attribution TTL when neither the signed
	// token nor the resolve endpoint specifies one.
	DefaultCookieDays = 30

	// SchemaVersion is the current payload schema version, stored as "v"
	// so older cookies stay readable as the payload evolves.
	SchemaVersion = 1
)

// Payload is the affiliate attribution record.
type Payload struct {
	OwnerID            string `json:"owner_id"`
	LinkID             string `json:"link_id,omitempty"`
	ProductID          string `json:"product_id,omitempty"`
	AffiliateProductID string `json:"affiliate_product_id,omitempty"`
	At                 int64  `json:"at"`
	Version            int    `json:"v"`
}

// Normalize fills the fields every stored payload must carry. OwnerID has no
// sensible default; callers decline attribution when it is empty.
func (p Payload) Normalize(now time.Time) Payload {
	if p.At == 0 {
		p.At = now.Unix()
	}
	if p.Version == 0 {
		p.Version = SchemaVersion
	}
	return p
}

// payloadFromMap coerces a decoded JSON object into a Payload. Fields of the
// wrong JSON type degrade to their zero value; a partially valid payload is
// accepted rather than rejected.
func payloadFromMap(m map[string]any) Payload {
	p := Payload{
		OwnerID:            stringField(m, "owner_id"),
		LinkID:             stringField(m, "link_id"),
		ProductID:          stringField(m, "product_id"),
		AffiliateProductID: stringField(m, "affiliate_product_id"),
	}
	if at, ok := numberField(m, "at"); ok {
		p.At = int64(at)
	}
	if v, ok := numberField(m, "v"); ok {
		p.Version = int(v)
	}
	return p
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberField(m map[string]any, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}
