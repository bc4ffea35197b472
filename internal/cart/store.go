package cart

import (
	"encoding/json"

	"github.com/tiendita-shop/tiendita/internal/shared"
)

// Carts are keyed per tenant inside the shopper's session, so browsing two
// stores keeps two independent carts.

func sessionKey(tenantID string) string {
	return "cart:" + tenantID
}

// FromSession loads the tenant's cart from the session, or a fresh empty
// cart when none is stored or the stored payload is unreadable.
func FromSession(sess *shared.Session, tenantID string) *Cart {
	if sess == nil {
		return New(tenantID)
	}
	raw := sess.Get(sessionKey(tenantID))
	if raw == "" {
		return New(tenantID)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.TenantID != tenantID {
		return New(tenantID)
	}
	return &c
}

// SaveToSession persists the cart. Empty carts are deleted instead of
// stored.
func SaveToSession(sess *shared.Session, c *Cart) {
	if sess == nil || c == nil {
		return
	}
	if c.IsEmpty() {
		sess.Delete(sessionKey(c.TenantID))
		return
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	sess.Set(sessionKey(c.TenantID), string(payload))
}

// ClearFromSession drops the tenant's cart, used after checkout hand-off.
func ClearFromSession(sess *shared.Session, tenantID string) {
	if sess == nil {
		return
	}
	sess.Delete(sessionKey(tenantID))
}
