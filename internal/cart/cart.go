// Package cart holds the shopper's pending order. Carts live in the
// session, one per store, and exist only until checkout hands the order to
// WhatsApp.
package cart

import (
	"errors"

	"github.com/tiendita-shop/tiendita/internal/catalog"
)

// ErrOutOfStock indicates an add for a product with no inventory.
var ErrOutOfStock = errors.New("cart: product out of stock")

// Line is one product in the cart.
type Line struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// LineTotal is the price times quantity for this line.
func (l Line) LineTotal() float64 {
	return l.Price * float64(l.Quantity)
}

// QuantityMinusOne feeds the storefront's decrement button.
func (l Line) QuantityMinusOne() int { return l.Quantity - 1 }

// QuantityPlusOne feeds the storefront's increment button.
func (l Line) QuantityPlusOne() int { return l.Quantity + 1 }

// Cart is the pending order for one store.
type Cart struct {
	TenantID string `json:"tenant_id"`
	Lines    []Line `json:"lines"`
}

// New returns an empty cart for the tenant.
func New(tenantID string) *Cart {
	return &Cart{TenantID: tenantID}
}

// Add puts quantity units of the product in the cart. Out-of-stock
// products are rejected; quantities above the available inventory clamp
// down to it.
func (c *Cart) Add(p *catalog.Product, quantity int) error {
	if !p.InStock() {
		return ErrOutOfStock
	}
	if quantity < 1 {
		quantity = 1
	}

	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			next := c.Lines[i].Quantity + quantity
			if next > p.InventoryCount {
				next = p.InventoryCount
			}
			c.Lines[i].Quantity = next
			c.Lines[i].Price = p.Price
			c.Lines[i].Name = p.Name
			return nil
		}
	}

	if quantity > p.InventoryCount {
		quantity = p.InventoryCount
	}
	c.Lines = append(c.Lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
	})
	return nil
}

// SetQuantity updates a line. Zero or negative removes it. Unknown product
// IDs are ignored.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
}

// Remove drops a line.
func (c *Cart) Remove(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Total is the sum of all line totals.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.LineTotal()
	}
	return total
}
