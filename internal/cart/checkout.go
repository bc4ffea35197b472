package cart

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tiendita-shop/tiendita/internal/shared"
)

// ComposeMessage renders the cart as the WhatsApp order text the shopper
// sends to the store.
func ComposeMessage(storeName string, c *Cart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi! I'd like to order from %s:\n\n", storeName)
	for _, l := range c.Lines {
		fmt.Fprintf(&b, "• %s x%d - $%.2f\n", l.Name, l.Quantity, l.LineTotal())
	}
	fmt.Fprintf(&b, "\nTotal: $%.2f\n\nPlease confirm my order. Thank you!", c.Total())
	return b.String()
}

// CheckoutLink builds the wa.me deep link carrying the order message. The
// store must have a WhatsApp number configured.
func CheckoutLink(whatsappNumber, message string) (string, error) {
	if whatsappNumber == "" {
		return "", shared.ErrCheckoutDisabled
	}
	digits := strings.TrimPrefix(whatsappNumber, "+")
	encoded := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + encoded, nil
}
