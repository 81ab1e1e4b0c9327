package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pricing holds the delivery surcharge rule.
type Pricing struct {
	FreeDeliveryThreshold decimal.Decimal
	Fee                   decimal.Decimal
	Currency              string
}

// DeliveryFee is zero when total reaches the free-delivery threshold and the
// flat fee otherwise.
func (p Pricing) DeliveryFee(total decimal.Decimal) decimal.Decimal {
	if total.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return p.Fee
}

// Quote is the price breakdown of a cart.
type Quote struct {
	Items    decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
}

// Quote prices lines. The delivery fee is charged only when withDelivery is
// set.
func (p Pricing) Quote(lines []Line, withDelivery bool) Quote {
	items := Total(lines)
	q := Quote{Items: items, Delivery: decimal.Zero, Total: items}
	if withDelivery {
		q.Delivery = p.DeliveryFee(items)
		q.Total = items.Add(q.Delivery)
	}
	return q
}

// Texts are the captions used by Render.
type Texts struct {
	Title    string // header line
	Empty    string // shown instead of the summary for an empty cart
	Delivery string // delivery fee caption
	Total    string // grand total caption
}

// Render writes a human-readable summary of lines. Output depends only on its
// inputs, so rendering an unchanged cart twice gives identical text. The
// delivery line appears only when withDelivery is set.
func (p Pricing) Render(lines []Line, withDelivery bool, t Texts) string {
	if len(lines) == 0 {
		return t.Empty
	}
	var b strings.Builder
	b.WriteString(t.Title)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString("\n*")
		b.WriteString(l.Product.Title)
		b.WriteByte('*')
		if l.Product.Subcategory != "" {
			b.WriteByte(' ')
			b.WriteString(l.Product.Subcategory)
		}
		fmt.Fprintf(&b, "\n%d x %s = %s\n", l.Quantity, l.Product.Price.StringFixed(2), p.money(l.Subtotal()))
	}
	q := p.Quote(lines, withDelivery)
	if withDelivery {
		fmt.Fprintf(&b, "\n*%s* %s\n", t.Delivery, p.money(q.Delivery))
	}
	fmt.Fprintf(&b, "\n%s: %s", t.Total, p.money(q.Total))
	return b.String()
}

func (p Pricing) money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if p.Currency != "" {
		s += " " + p.Currency
	}
	return s
}
