package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/services"
	"github.com/tbourn/go-delivery-bot/internal/session"
)

// beginCheckout moves an order-ready cart into StateOrdering. Outside working
// hours the user is sent back to the menu instead.
func (m *Machine) beginCheckout(_ context.Context, t *turn) []Reply {
	tx := m.Labels.Texts
	if t.sess.Cart.Empty() {
		return []Reply{m.text(t.ev.ChatID, tx.EmptyCart)}
	}
	if !m.Hours.Contains(m.now().In(m.Location)) {
		t.log.Info().Str("hours", m.Hours.String()).Msg("order outside working hours")
		return m.mainMenu(t, fmt.Sprintf(tx.WorkingTime, m.Hours.String()))
	}
	t.sess.ClearCheckout()
	t.sess.State = session.StateOrdering
	t.sess.Step = session.StepOrderType
	return []Reply{m.withKeyboard(t.ev.ChatID, tx.SelectOrderType, m.Keys.OrderType())}
}

func (m *Machine) onOrdering(ctx context.Context, t *turn) ([]Reply, error) {
	b := m.Labels.Buttons
	switch t.ev.Text {
	case b.Menu:
		return m.mainMenu(t, m.Labels.Texts.SelectMenu), nil
	case b.Cart:
		t.sess.ClearCheckout()
		return m.showCart(t), nil
	}

	switch t.sess.Step {
	case session.StepOrderType:
		return m.onOrderType(t)
	case session.StepAddress:
		return m.onAddress(t)
	case session.StepPayment:
		return m.onPayment(ctx, t)
	case session.StepConfirm:
		return m.onConfirm(ctx, t)
	default:
		t.sess.Step = session.StepOrderType
		return []Reply{m.withKeyboard(t.ev.ChatID, m.Labels.Texts.SelectOrderType, m.Keys.OrderType())}, nil
	}
}

func (m *Machine) onOrderType(t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	switch t.ev.Text {
	case b.Delivery:
		t.sess.DeliveryType = domain.Delivery
		t.sess.Step = session.StepAddress
		return []Reply{m.withKeyboard(t.ev.ChatID, tx.EnterAddress, m.Keys.Address())}, nil
	case b.SelfPick:
		t.sess.DeliveryType = domain.SelfPick
		t.sess.Step = session.StepPayment
		return []Reply{m.withKeyboard(t.ev.ChatID, tx.SelectPaymentType, m.Keys.Payment())}, nil
	case b.Back:
		t.sess.ClearCheckout()
		return m.showCart(t), nil
	default:
		return ignore(t, "unknown order type")
	}
}

// onAddress accepts a shared location or any typed text as the address.
func (m *Machine) onAddress(t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	ev, sess := t.ev, t.sess

	if ev.Text == b.Back {
		sess.DeliveryType = ""
		sess.Step = session.StepOrderType
		return []Reply{m.withKeyboard(ev.ChatID, tx.SelectOrderType, m.Keys.OrderType())}, nil
	}
	switch addr := strings.TrimSpace(ev.Text); {
	case ev.Location != nil:
		loc := *ev.Location
		sess.Location, sess.Address = &loc, ""
	case addr != "":
		sess.Address, sess.Location = addr, nil
	default:
		return []Reply{m.withKeyboard(ev.ChatID, tx.EnterAddress, m.Keys.Address())}, nil
	}
	sess.Step = session.StepPayment
	return []Reply{m.withKeyboard(ev.ChatID, tx.SelectPaymentType, m.Keys.Payment())}, nil
}

func (m *Machine) onPayment(ctx context.Context, t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	ev, sess := t.ev, t.sess

	switch ev.Text {
	case b.Cash:
		sess.PaymentType = domain.PayCash
	case b.Terminal:
		sess.PaymentType = domain.PayTerminal
	case b.Back:
		if sess.Delivering() {
			sess.Step = session.StepAddress
			return []Reply{m.withKeyboard(ev.ChatID, tx.EnterAddress, m.Keys.Address())}, nil
		}
		sess.DeliveryType = ""
		sess.Step = session.StepOrderType
		return []Reply{m.withKeyboard(ev.ChatID, tx.SelectOrderType, m.Keys.OrderType())}, nil
	default:
		return ignore(t, "unknown payment type")
	}

	info, err := m.orderInfo(ctx, t)
	if err != nil {
		return nil, err
	}
	sess.Step = session.StepConfirm
	kb := m.Keys.Confirm()
	return []Reply{{ChatID: ev.ChatID, Text: info, ParseMode: ParseMarkdown, Keyboard: &kb}}, nil
}

func (m *Machine) onConfirm(ctx context.Context, t *turn) ([]Reply, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	switch t.ev.Text {
	case b.Confirm:
		return m.submit(ctx, t)
	case b.Cancel:
		t.sess.Cart.Clear()
		t.sess.Reset()
		return []Reply{m.withKeyboard(t.ev.ChatID, tx.OrderCancelledByUser, m.Keys.Main(m.Catalog.Categories()))}, nil
	default:
		return ignore(t, "unknown confirmation option")
	}
}

// submit persists the order, tells the back office, and returns the user to
// the menu with an empty cart. A failed write leaves the session untouched.
func (m *Machine) submit(ctx context.Context, t *turn) ([]Reply, error) {
	tx := m.Labels.Texts
	ev, sess := t.ev, t.sess

	info, err := m.orderInfo(ctx, t)
	if err != nil {
		return nil, err
	}
	o, err := m.Orders.Submit(ctx, sess, ev.UserID)
	if errors.Is(err, services.ErrEmptyCart) || errors.Is(err, services.ErrIncompleteCheckout) {
		t.log.Warn().Err(err).Msg("submit rejected")
		return m.mainMenu(t, tx.EmptyCart), nil
	}
	if err != nil {
		return nil, err
	}

	admin := fmt.Sprintf("%s\n\n`User_id: %d`\n`Order_id: %d`\n", info, ev.UserID, o.ID)
	userID := ev.UserID
	m.Orders.NotifyBackOffice(ctx, admin, &userID)

	sess.Cart.Clear()
	sess.PendingOrderID = o.ID
	t.log.Info().Uint("order_id", o.ID).Msg("order placed")
	return m.mainMenu(t, fmt.Sprintf(tx.OrderAccepted, o.ID)), nil
}

// orderInfo renders the order summary shown to the user before confirmation
// and to the back office after it.
func (m *Machine) orderInfo(ctx context.Context, t *turn) (string, error) {
	b, tx := m.Labels.Buttons, m.Labels.Texts
	sess := t.sess

	phone := ""
	u, err := m.Users.Get(ctx, t.ev.UserID)
	switch {
	case err == nil:
		phone = u.Phone
	case errors.Is(err, services.ErrUserNotFound):
		t.log.Warn().Msg("ordering user has no profile")
	default:
		return "", err
	}

	payment := b.Cash
	if sess.PaymentType == domain.PayTerminal {
		payment = b.Terminal
	}
	kind := b.SelfPick
	if sess.Delivering() {
		kind = b.Delivery
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, tx.OrderInfo, phone, payment, kind)
	if sess.Delivering() {
		if sess.Location != nil {
			fmt.Fprintf(&sb, tx.LocationLine, sess.Location.String())
		} else {
			fmt.Fprintf(&sb, tx.AddressLine, sess.Address)
		}
	}
	sb.WriteByte('\n')
	sb.WriteString(m.Pricing.Render(m.lines(t), sess.Delivering(), m.cartTexts()))
	return sb.String(), nil
}
