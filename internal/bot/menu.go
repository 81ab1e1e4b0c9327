package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/go-delivery-bot/internal/cart"
	"github.com/tbourn/go-delivery-bot/internal/session"
)

func (m *Machine) onCategory(ctx context.Context, t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	ev, sess := t.ev, t.sess

	switch txt := ev.Text; {
	case txt == b.Cart:
		return m.showCart(t), nil
	case txt == b.Settings:
		return m.openSettings(t), nil
	case txt == b.Back:
		if sess.Scope != "" {
			return m.mainMenu(t, tx.SelectMenu), nil
		}
		sess.Reset()
		return m.start(ctx, t)
	case m.Catalog.IsCategory(txt) && m.Catalog.HasSubcategories(txt):
		sess.Scope, sess.Category = txt, ""
		return []Reply{m.withKeyboard(ev.ChatID, tx.SelectSubcategory, m.Keys.Subcategories(m.Catalog.Subcategories(txt)))}, nil
	case m.Catalog.CategoryExists(txt):
		return m.listProducts(t, txt), nil
	default:
		return ignore(t, "unknown category")
	}
}

// listProducts shows the products of a leaf category or subcategory.
func (m *Machine) listProducts(t *turn, label string) []Reply {
	t.sess.Category = label
	t.sess.ProductID = 0
	t.sess.State = session.StateChoosingProduct
	titles := m.Catalog.ProductTitles(label)
	return []Reply{m.withKeyboard(t.ev.ChatID, fmt.Sprintf(m.Labels.Texts.SelectProduct, label), m.Keys.Products(titles))}
}

func (m *Machine) onProduct(_ context.Context, t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	ev, sess := t.ev, t.sess

	switch ev.Text {
	case b.Back:
		sess.Category = ""
		sess.State = session.StateChoosingCategory
		if sess.Scope != "" {
			return []Reply{m.withKeyboard(ev.ChatID, tx.SelectSubcategory, m.Keys.Subcategories(m.Catalog.Subcategories(sess.Scope)))}, nil
		}
		return m.mainMenu(t, tx.SelectMenu), nil
	case b.Cart:
		return m.showCart(t), nil
	}

	p, ok := m.Catalog.FindProduct(ev.Text, sess.Category)
	if !ok {
		return ignore(t, "product not found in category")
	}
	sess.ProductID = p.ID
	sess.State = session.StateTypingQuantity

	caption := fmt.Sprintf(tx.ProductCard, p.Title, p.Composition, p.Price.StringFixed(2), m.Pricing.Currency)
	kb := m.Keys.Quantity()
	r := Reply{ChatID: ev.ChatID, Text: caption, ParseMode: ParseMarkdown, Keyboard: &kb, PhotoURL: p.ImageURL}
	return []Reply{r}, nil
}

// onQuantity adds the chosen product. Input that is not a positive integer is
// answered with a notice and the quantity keyboard again.
func (m *Machine) onQuantity(_ context.Context, t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	ev, sess := t.ev, t.sess

	switch ev.Text {
	case b.Back:
		return m.listProducts(t, sess.Category), nil
	case b.Cart:
		return m.showCart(t), nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || n < 1 {
		t.log.Info().Str("text", ev.Text).Msg("bad quantity")
		return []Reply{m.withKeyboard(ev.ChatID, tx.BadQuantity, m.Keys.Quantity())}, nil
	}
	p, ok := m.Catalog.FindProductByID(sess.ProductID)
	if !ok {
		t.log.Warn().Uint("product_id", sess.ProductID).Msg("selected product vanished")
		return m.mainMenu(t, tx.SelectMenu), nil
	}
	if err := sess.Cart.Add(p.ID, n); err != nil {
		return []Reply{m.withKeyboard(ev.ChatID, tx.BadQuantity, m.Keys.Quantity())}, nil
	}
	return append([]Reply{m.text(ev.ChatID, tx.AddedToCart)}, m.mainMenu(t, tx.SelectMenu)...), nil
}

// showCart renders the cart with one remove button per line.
func (m *Machine) showCart(t *turn) []Reply {
	t.sess.State = session.StateEditingCart
	t.sess.Step = session.StepNone
	lines := m.lines(t)
	labels := make([]string, len(lines))
	for i, l := range lines {
		labels[i] = cart.ItemLabel(m.Labels.Buttons.RemoveMarker, l)
	}
	summary := m.Pricing.Render(lines, t.sess.Delivering(), m.cartTexts())
	kb := m.Keys.Cart(labels)
	return []Reply{{ChatID: t.ev.ChatID, Text: summary, ParseMode: ParseMarkdown, Keyboard: &kb}}
}

func (m *Machine) onCart(ctx context.Context, t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	ev, sess := t.ev, t.sess

	switch txt := ev.Text; {
	case b.RemoveMarker != "" && strings.HasPrefix(txt, b.RemoveMarker):
		item := strings.TrimSpace(strings.TrimPrefix(txt, b.RemoveMarker))
		if n := sess.Cart.Remove(item, m.Catalog); n == 0 {
			t.log.Info().Str("item", item).Msg("nothing to remove")
		}
		return m.showCart(t), nil
	case txt == b.Clear:
		sess.Cart.Clear()
		sess.Reset()
		return []Reply{m.withKeyboard(ev.ChatID, tx.CleanedCart, m.Keys.Main(m.Catalog.Categories()))}, nil
	case txt == b.Back:
		return m.mainMenu(t, tx.SelectMenu), nil
	case txt == b.Order:
		return m.beginCheckout(ctx, t), nil
	default:
		return ignore(t, "unknown cart option")
	}
}
