package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-delivery-bot/internal/callback"
	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
	"github.com/tbourn/go-delivery-bot/internal/services"
)

// chosenMark prefixes the delivery time the operator picked.
const chosenMark = "✅ "

// onDeliveryTime forwards the operator's estimate to the customer together
// with accept/cancel buttons for the customer's pending order, and marks the
// chosen time on the operator's message.
func (m *Machine) onDeliveryTime(ctx context.Context, ev Event, d callback.Data) ([]Reply, error) {
	lg := log.With().Int64("user_id", d.UserID).Int("minutes", d.Minutes).Logger()
	if !m.isAdminChat(ev.ChatID) {
		lg.Warn().Int64("chat_id", ev.ChatID).Msg("delivery time outside the admin chat")
		return nil, nil
	}
	sess, err := m.Sessions.Get(ctx, d.UserID)
	if err != nil {
		return nil, err
	}
	if sess.PendingOrderID == 0 {
		lg.Warn().Msg("no pending order for delivery time")
		return nil, nil
	}
	// The buttons carry no order id, so a stale pending id must not reach
	// the customer as a fresh decision.
	o, err := m.Orders.Get(ctx, sess.PendingOrderID)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		lg.Warn().Uint("order_id", sess.PendingOrderID).Msg("pending order vanished")
		return nil, nil
	case err != nil:
		return nil, err
	case o.Status != domain.OrderInitial:
		lg.Warn().Uint("order_id", o.ID).Str("status", string(o.Status)).Msg("pending order already decided")
		return nil, nil
	}

	tx := m.Labels.Texts
	marked := keyboard.DeliveryTimes(d.UserID, m.TimeOptions, func(n int) string {
		s := fmt.Sprintf(tx.Minutes, n)
		if n == d.Minutes {
			s = chosenMark + s
		}
		return s
	})
	decision := keyboard.OrderDecision(sess.PendingOrderID, tx.ETAOk, tx.ETACancel)

	lg.Info().Uint("order_id", sess.PendingOrderID).Msg("delivery time proposed")
	return []Reply{
		{ChatID: ev.ChatID, EditMessageID: ev.MessageID, Inline: &marked},
		{ChatID: d.UserID, Text: fmt.Sprintf(tx.DeliveryETA, d.Minutes), Inline: &decision},
	}, nil
}

// onOrderDecision finalizes the customer's order. Only the order's owner may
// decide, and only once; repeated presses just remove the buttons.
func (m *Machine) onOrderDecision(ctx context.Context, ev Event, orderID uint, status domain.OrderStatus) ([]Reply, error) {
	lg := log.With().Int64("user_id", ev.UserID).Uint("order_id", orderID).Str("status", string(status)).Logger()
	removeButtons := Reply{ChatID: ev.ChatID, DeleteMessageID: ev.MessageID}

	o, err := m.Orders.Get(ctx, orderID)
	if errors.Is(err, services.ErrOrderNotFound) {
		lg.Warn().Msg("decision for unknown order")
		return []Reply{removeButtons}, nil
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != ev.UserID {
		lg.Warn().Int64("owner_id", o.UserID).Msg("decision from a user who does not own the order")
		return nil, nil
	}

	if _, err := m.Orders.Finalize(ctx, orderID, status); err != nil {
		if errors.Is(err, services.ErrOrderAlreadyFinalized) || errors.Is(err, services.ErrOrderNotFound) {
			lg.Info().Err(err).Msg("decision ignored")
			return []Reply{removeButtons}, nil
		}
		return nil, err
	}

	sess, err := m.Sessions.Get(ctx, ev.UserID)
	if err != nil {
		return nil, err
	}
	if sess.PendingOrderID == orderID {
		sess.PendingOrderID = 0
		if err := m.Sessions.Save(ctx, sess); err != nil {
			lg.Error().Err(err).Msg("save session after decision")
		}
	}

	tx := m.Labels.Texts
	notice, admin := tx.ThankYou, fmt.Sprintf(tx.AdminOrderConfirmed, orderID)
	if status == domain.OrderCancelled {
		notice, admin = tx.OrderCancelled, fmt.Sprintf(tx.AdminOrderCancelled, orderID)
	}
	m.Orders.NotifyBackOffice(ctx, admin, nil)

	lg.Info().Msg("order decided")
	return []Reply{
		removeButtons,
		m.withKeyboard(ev.ChatID, notice, m.Keys.Main(m.Catalog.Categories())),
	}, nil
}
