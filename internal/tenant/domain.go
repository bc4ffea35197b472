package tenant

import "time"

// Tenant is a store: one seller account space with its own catalog and
// public storefront at /t/{slug}.
type Tenant struct {
	ID             string
	Name           string
	Slug           string
	WhatsAppNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CheckoutEnabled reports whether the storefront can hand off orders.
func (t *Tenant) CheckoutEnabled() bool {
	return t != nil && t.WhatsAppNumber != ""
}

// Membership links a user to a tenant. The first member is the owner.
type Membership struct {
	TenantID   string
	UserID     string
	Role       string
	TenantSlug string
	CreatedAt  time.Time
}

// RoleOwner is the role given to the user who created the tenant.
const RoleOwner = "owner"
