// Package services – OrderService
//
// OrderService turns a session's cart into a persisted order, tells the back
// office about it, and records the operator's or customer's final decision.
// Persistence and notification are not atomic: an order is committed before
// the back office hears about it, so a crash in between leaves an order
// nobody was told about. The operator API lists such orders.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/cart"
	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/events"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
	"github.com/tbourn/go-delivery-bot/internal/observability"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/session"
	"github.com/tbourn/go-delivery-bot/internal/utils"
)

// Notifier delivers text to the back-office chat.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string, inline *keyboard.Inline) error
}

// CustomerNotifier delivers text to one customer's chat.
type CustomerNotifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// DecisionTexts are the messages sent when an order is finalized outside the
// dialogue. AdminConfirmed and AdminCancelled take the order id.
type DecisionTexts struct {
	Confirmed      string
	Cancelled      string
	AdminConfirmed string
	AdminCancelled string
}

// OrderService coordinates order submission and finalization.
type OrderService struct {
	DB      *gorm.DB
	Catalog cart.Lookup
	Pricing cart.Pricing

	// Notifier may be nil, in which case back-office messages are dropped.
	Notifier Notifier
	Events   events.Publisher

	// Customer, Sessions and Texts serve FinalizeAndNotify. Customer may be
	// nil; Sessions may be nil when no dialogue runs in this process.
	Customer CustomerNotifier
	Sessions session.Store
	Texts    DecisionTexts

	// TimeOptions are the delivery times (minutes) offered to the operator;
	// MinutesCaption renders one as a button caption.
	TimeOptions    []int
	MinutesCaption func(int) string

	Now func() time.Time
}

// NewOrderService returns a service with the no-op publisher and wall clock.
func NewOrderService(db *gorm.DB, lk cart.Lookup, p cart.Pricing) *OrderService {
	return &OrderService{
		DB:             db,
		Catalog:        lk,
		Pricing:        p,
		Events:         events.Nop{},
		MinutesCaption: func(m int) string { return fmt.Sprintf("%d min", m) },
		Now:            time.Now,
	}
}

func (s *OrderService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Submit prices the session's cart and persists it as an order in status
// initial. The delivery fee is charged only for delivery orders. The session
// itself is not modified.
func (s *OrderService) Submit(ctx context.Context, sess *session.Session, userID int64) (*domain.Order, error) {
	ctx, span := observability.Start(ctx, "orders", "Submit", attribute.Int64("user.id", userID))
	defer span.End()

	lines, err := cart.Lines(sess.Cart, s.Catalog)
	if err != nil {
		observability.Fail(span, err)
		return nil, err
	}
	if _, err := cart.CheckoutTotal(lines); err != nil {
		return nil, err
	}
	if sess.DeliveryType == "" || sess.PaymentType == "" {
		return nil, ErrIncompleteCheckout
	}

	q := s.Pricing.Quote(lines, sess.Delivering())
	o := &domain.Order{
		UserID:       userID,
		Cart:         cart.Flatten(lines),
		DeliveryType: sess.DeliveryType,
		Address:      sess.Address,
		PaymentType:  sess.PaymentType,
		Status:       domain.OrderInitial,
		Price:        q.Total,
	}
	if sess.Location != nil {
		lat, lon := sess.Location.Latitude, sess.Location.Longitude
		o.Latitude, o.Longitude = &lat, &lon
	}
	if err := repo.AddOrder(ctx, s.DB, o); err != nil {
		observability.Fail(span, err)
		return nil, fmt.Errorf("%w: add order: %w", ErrPersistence, err)
	}
	span.SetAttributes(attribute.Int64("order.id", int64(o.ID)))
	observability.OrderSubmitted(string(o.DeliveryType))

	s.publish(ctx, events.TypeOrderCreated, o)
	log.Info().Uint("order_id", o.ID).Int64("user_id", userID).Str("price", o.Price.StringFixed(2)).Msg("order submitted")
	return o, nil
}

// NotifyBackOffice sends text to the administrative chat. When timeOptionsFor
// is set, the message carries delivery-time buttons addressed to that user.
// Failures are logged and never returned: the order row is the record.
func (s *OrderService) NotifyBackOffice(ctx context.Context, text string, timeOptionsFor *int64) {
	ctx, span := observability.Start(ctx, "orders", "NotifyBackOffice")
	defer span.End()

	if s.Notifier == nil {
		log.Warn().Msg("back office notifier not configured; dropping message")
		return
	}
	var inline *keyboard.Inline
	if timeOptionsFor != nil && len(s.TimeOptions) > 0 {
		kb := keyboard.DeliveryTimes(*timeOptionsFor, s.TimeOptions, s.MinutesCaption)
		inline = &kb
	}
	if err := s.Notifier.NotifyAdmin(ctx, text, inline); err != nil {
		observability.Fail(span, err)
		log.Error().Err(err).Msg("notify back office")
	}
}

// Finalize moves an initial order to confirmed or cancelled. An order is
// finalized at most once; later calls get ErrOrderAlreadyFinalized.
func (s *OrderService) Finalize(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.Order, error) {
	ctx, span := observability.Start(ctx, "orders", "Finalize",
		attribute.Int64("order.id", int64(orderID)),
		attribute.String("order.status", string(status)),
	)
	defer span.End()

	if !status.Final() {
		return nil, ErrInvalidStatus
	}
	err := repo.FinalizeOrder(ctx, s.DB, orderID, status, s.now())
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, repo.ErrAlreadyFinalized):
		return nil, ErrOrderAlreadyFinalized
	case err != nil:
		observability.Fail(span, err)
		return nil, fmt.Errorf("%w: finalize order: %w", ErrPersistence, err)
	}

	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		observability.Fail(span, err)
		return nil, fmt.Errorf("%w: reload order: %w", ErrPersistence, err)
	}
	observability.OrderFinalized(string(status))
	s.publish(ctx, events.TypeOrderFinalized, o)
	log.Info().Uint("order_id", orderID).Str("status", string(status)).Msg("order finalized")
	return o, nil
}

// FinalizeAndNotify finalizes an order on behalf of an operator and then
// does what the dialogue does after a customer's decision: clears the
// customer's pending order, tells the customer, and tells the back office.
// Only the finalization can fail; notification errors are logged.
func (s *OrderService) FinalizeAndNotify(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.Order, error) {
	o, err := s.Finalize(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	lg := log.With().Uint("order_id", o.ID).Int64("user_id", o.UserID).Str("status", string(status)).Logger()

	if s.Sessions != nil {
		sess, err := s.Sessions.Get(ctx, o.UserID)
		switch {
		case err != nil:
			lg.Error().Err(err).Msg("load session after finalize")
		case sess.PendingOrderID == o.ID:
			sess.PendingOrderID = 0
			if err := s.Sessions.Save(ctx, sess); err != nil {
				lg.Error().Err(err).Msg("save session after finalize")
			}
		}
	}

	notice, admin := s.Texts.Confirmed, s.Texts.AdminConfirmed
	if status == domain.OrderCancelled {
		notice, admin = s.Texts.Cancelled, s.Texts.AdminCancelled
	}
	switch {
	case s.Customer == nil:
		lg.Warn().Msg("customer notifier not configured; dropping notice")
	case notice != "":
		if err := s.Customer.NotifyUser(ctx, o.UserID, notice); err != nil {
			lg.Error().Err(err).Msg("notify customer")
		}
	}
	if admin != "" {
		s.NotifyBackOffice(ctx, fmt.Sprintf(admin, o.ID), nil)
	}
	return o, nil
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return o, nil
}

// ListPage returns a page of orders, newest first, and the total count.
func (s *OrderService) ListPage(ctx context.Context, f repo.OrderFilter, page, pageSize int) ([]domain.Order, int64, error) {
	ctx, span := observability.Start(ctx, "orders", "ListPage",
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	offset, limit := utils.Page(page, pageSize, 0)

	total, err := repo.CountOrders(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}
	items, err := repo.ListOrdersPage(ctx, s.DB, f, offset, limit)
	return items, total, err
}

// All returns every order matching f, oldest first. Used for reports.
func (s *OrderService) All(ctx context.Context, f repo.OrderFilter) ([]domain.Order, error) {
	return repo.ListOrders(ctx, s.DB, f)
}

func (s *OrderService) publish(ctx context.Context, typ string, o *domain.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.FromOrder(typ, o, s.now())); err != nil {
		log.Warn().Err(err).Uint("order_id", o.ID).Str("event", typ).Msg("publish order event")
	}
}
