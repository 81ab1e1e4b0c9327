// Package cart holds the per-session shopping cart and the pricing rules
// applied to it. Money is decimal throughout; nothing here touches storage.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

var (
	// ErrInvalidQuantity is returned by Add for quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrEmptyCart is returned when a checkout total is requested for an
	// empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnknownProduct is returned when a cart item no longer resolves
	// against the catalog.
	ErrUnknownProduct = errors.New("unknown product in cart")
)

// Item is one product selection. Selecting the same product twice yields
// two items.
type Item struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Cart is an ordered list of items owned by one conversation session.
type Cart struct {
	Items []Item `json:"items"`
}

// Lookup resolves product ids. *catalog.Catalog implements it.
type Lookup interface {
	FindProductByID(id uint) (domain.Product, bool)
}

// Add appends an item.
func (c *Cart) Add(productID uint, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	return nil
}

// Remove drops every item matching text and returns how many were removed.
// An item matches when its label ("title subcategory") contains text, or
// when text contains its title. The second rule means a remove button for one
// size of a product also removes the other sizes; ambiguous matches are
// removed together. Matching is case-sensitive. Items whose product is no
// longer in the catalog are kept.
func (c *Cart) Remove(text string, lk Lookup) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	kept := c.Items[:0]
	removed := 0
	for _, it := range c.Items {
		p, ok := lk.FindProductByID(it.ProductID)
		if ok && (strings.Contains(label(p), text) || strings.Contains(text, p.Title)) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return removed
}

// Clear empties the cart.
func (c *Cart) Clear() { c.Items = nil }

// Empty reports whether the cart has no items.
func (c Cart) Empty() bool { return len(c.Items) == 0 }

// Line is an item resolved against the catalog.
type Line struct {
	Product  domain.Product
	Quantity int
}

// Subtotal is price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Lines resolves every item. It fails with ErrUnknownProduct if any product
// id is missing from lk.
func Lines(c Cart, lk Lookup) ([]Line, error) {
	out := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := lk.FindProductByID(it.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownProduct, it.ProductID)
		}
		out = append(out, Line{Product: p, Quantity: it.Quantity})
	}
	return out, nil
}

// Total is the sum of line subtotals; zero for no lines.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// CheckoutTotal is Total for a cart that is about to be ordered.
func CheckoutTotal(lines []Line) (decimal.Decimal, error) {
	if len(lines) == 0 {
		return decimal.Zero, ErrEmptyCart
	}
	return Total(lines), nil
}

// Flatten encodes lines into the order's cart text, one
// "<title> <category> <subcategory> x <qty>  || " segment per line.
func Flatten(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%s %s %s x %d  || ", l.Product.Title, l.Product.Category, l.Product.Subcategory, l.Quantity)
	}
	return b.String()
}

// ItemLabel is the remove-button caption for a line.
func ItemLabel(marker string, l Line) string {
	return marker + " " + label(l.Product)
}

func label(p domain.Product) string {
	return strings.TrimSpace(p.Title + " " + p.Subcategory)
}
