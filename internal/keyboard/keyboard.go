// Package keyboard builds the option lists shown to the user at each step of
// the dialogue. Every builder is a pure function of its arguments; captions
// come from config.ButtonLabels and are never hardcoded here.
package keyboard

import (
	"strconv"

	"github.com/tbourn/go-delivery-bot/internal/callback"
	"github.com/tbourn/go-delivery-bot/internal/config"
	"github.com/tbourn/go-delivery-bot/internal/utils"
)

// DefaultWidth is the number of catalog buttons per row.
const DefaultWidth = 2

// Button is a reply-keyboard button. The request flags ask the client to
// send the user's location or phone contact instead of the caption.
type Button struct {
	Text            string `json:"text"`
	RequestLocation bool   `json:"request_location,omitempty"`
	RequestContact  bool   `json:"request_contact,omitempty"`
}

// Keyboard is a reply keyboard, row by row.
type Keyboard struct {
	Rows [][]Button `json:"rows"`
}

// Labels flattens the keyboard captions row by row.
func (k Keyboard) Labels() []string {
	var out []string
	for _, r := range k.Rows {
		for _, b := range r {
			out = append(out, b.Text)
		}
	}
	return out
}

// InlineButton is a button attached to a message that posts Data back.
type InlineButton struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Inline is an inline keyboard.
type Inline struct {
	Rows [][]InlineButton `json:"rows"`
}

// Group chunks labels into rows of n buttons, preserving order. Empty labels
// are skipped.
func Group(labels []string, n int) [][]Button {
	btns := make([]Button, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		btns = append(btns, Button{Text: l})
	}
	return utils.Chunk(btns, n)
}

func row(labels ...string) []Button {
	r := make([]Button, len(labels))
	for i, l := range labels {
		r[i] = Button{Text: l}
	}
	return r
}

// Builder renders keyboards with a fixed set of captions.
type Builder struct {
	B     config.ButtonLabels
	Width int
}

// New returns a Builder using DefaultWidth.
func New(b config.ButtonLabels) Builder {
	return Builder{B: b, Width: DefaultWidth}
}

func (kb Builder) width() int {
	if kb.Width < 1 {
		return DefaultWidth
	}
	return kb.Width
}

// Main lists categories, then Cart, then Settings.
func (kb Builder) Main(categories []string) Keyboard {
	rows := Group(categories, kb.width())
	rows = append(rows, row(kb.B.Cart), row(kb.B.Settings))
	return Keyboard{Rows: rows}
}

// Subcategories lists the named subcategories of a category, then Back.
func (kb Builder) Subcategories(subs []string) Keyboard {
	rows := Group(subs, kb.width())
	rows = append(rows, row(kb.B.Back))
	return Keyboard{Rows: rows}
}

// Products lists product titles, then Back.
func (kb Builder) Products(titles []string) Keyboard {
	rows := Group(titles, kb.width())
	rows = append(rows, row(kb.B.Back))
	return Keyboard{Rows: rows}
}

// Quantity offers 1 to 10, then Back and Cart.
func (kb Builder) Quantity() Keyboard {
	nums := make([]string, 10)
	for i := range nums {
		nums[i] = strconv.Itoa(i + 1)
	}
	rows := Group(nums, 5)
	rows = append(rows, row(kb.B.Back, kb.B.Cart))
	return Keyboard{Rows: rows}
}

// Cart shows one remove button per item, then Back and Clear, then Order.
func (kb Builder) Cart(itemLabels []string) Keyboard {
	rows := Group(itemLabels, 1)
	rows = append(rows, row(kb.B.Back, kb.B.Clear), row(kb.B.Order))
	return Keyboard{Rows: rows}
}

// OrderType asks for delivery or self-pickup.
func (kb Builder) OrderType() Keyboard {
	return Keyboard{Rows: [][]Button{
		row(kb.B.Delivery, kb.B.SelfPick),
		row(kb.B.Back, kb.B.Cart),
	}}
}

// Address offers to share the current location; typed text is accepted too.
func (kb Builder) Address() Keyboard {
	return Keyboard{Rows: [][]Button{
		{{Text: kb.B.SendLocation, RequestLocation: true}},
		row(kb.B.Back, kb.B.Menu),
	}}
}

// Payment asks for the payment type.
func (kb Builder) Payment() Keyboard {
	return Keyboard{Rows: [][]Button{
		row(kb.B.Cash, kb.B.Terminal),
		row(kb.B.Back, kb.B.Menu),
	}}
}

// Confirm asks the user to confirm or cancel the order summary.
func (kb Builder) Confirm() Keyboard {
	return Keyboard{Rows: [][]Button{row(kb.B.Confirm), row(kb.B.Cancel)}}
}

// Skip offers to skip an optional onboarding step.
func (kb Builder) Skip() Keyboard {
	return Keyboard{Rows: [][]Button{row(kb.B.Skip)}}
}

// Phone offers to share the phone contact; typed numbers are accepted too.
func (kb Builder) Phone() Keyboard {
	return Keyboard{Rows: [][]Button{{{Text: kb.B.SharePhone, RequestContact: true}}}}
}

// Settings lists profile actions, then Back.
func (kb Builder) Settings() Keyboard {
	return Keyboard{Rows: [][]Button{
		row(kb.B.ChangeName, kb.B.ChangePhone),
		row(kb.B.Back),
	}}
}

// DeliveryTimes is the back-office keyboard proposing delivery times to
// userID. caption renders a minute count (e.g. "30 минут").
func DeliveryTimes(userID int64, minutes []int, caption func(int) string) Inline {
	r := make([]InlineButton, len(minutes))
	for i, m := range minutes {
		r[i] = InlineButton{Text: caption(m), Data: callback.DeliveryTime(m, userID)}
	}
	return Inline{Rows: [][]InlineButton{r}}
}

// OrderDecision lets the customer accept the proposed time or cancel.
func OrderDecision(orderID uint, okText, cancelText string) Inline {
	return Inline{Rows: [][]InlineButton{{
		{Text: okText, Data: callback.OrderConfirm(orderID)},
		{Text: cancelText, Data: callback.OrderCancel(orderID)},
	}}}
}
