package catalog

import (
	"net/url"
	"time"
)

// Image is one stored product photo. URL is what the storefront renders,
// Path is the object key inside the image bucket.
type Image struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
}

// Product belongs to exactly one tenant. All lookups are scoped by tenant
// so one store can never see or mutate another store's rows.
type Product struct {
	ID             string
	TenantID       string
	Name           string
	Brand          string
	Size           string
	Code           string
	Description    string
	Details        string
	Extras         string
	Price          float64
	InventoryCount int
	Images         []Image
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FirstImage returns the leading image URL, empty when the product has none.
func (p *Product) FirstImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// InStock reports whether the product can be added to a cart.
func (p *Product) InStock() bool {
	return p != nil && p.InventoryCount > 0
}

// Status renders the stock state for admin lists.
func (p *Product) Status() string {
	if p.InStock() {
		return "In stock"
	}
	return "Out of stock"
}

// CleanImages drops broken image entries: empty URLs, the literal strings
// clients send for missing values, and anything that does not parse as an
// absolute URL. Order of survivors is preserved. Idempotent.
func CleanImages(images []Image) []Image {
	cleaned := make([]Image, 0, len(images))
	for _, img := range images {
		switch img.URL {
		case "", "undefined", "null":
			continue
		}
		u, err := url.Parse(img.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		cleaned = append(cleaned, img)
	}
	return cleaned
}
