package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-delivery-bot/internal/callback"
	"github.com/tbourn/go-delivery-bot/internal/cart"
	"github.com/tbourn/go-delivery-bot/internal/config"
	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
	"github.com/tbourn/go-delivery-bot/internal/observability"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/session"
)

// Catalog is the menu view the dialogue reads. *catalog.Catalog implements it.
type Catalog interface {
	cart.Lookup
	Categories() []string
	Subcategories(category string) []string
	HasSubcategories(category string) bool
	ProductTitles(label string) []string
	FindProduct(title, label string) (domain.Product, bool)
	CategoryExists(text string) bool
	IsCategory(text string) bool
}

// Users is the profile store. *services.UserService implements it.
type Users interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	Register(ctx context.Context, u *domain.User) (*domain.User, error)
	UpdateField(ctx context.Context, id int64, column string, value any) error
	ListAll(ctx context.Context) ([]domain.User, error)
}

// Orders is the order workflow. *services.OrderService implements it.
type Orders interface {
	Submit(ctx context.Context, sess *session.Session, userID int64) (*domain.Order, error)
	NotifyBackOffice(ctx context.Context, text string, timeOptionsFor *int64)
	Finalize(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.Order, error)
	Get(ctx context.Context, orderID uint) (*domain.Order, error)
	All(ctx context.Context, f repo.OrderFilter) ([]domain.Order, error)
}

// Machine runs the dialogue. It keeps no per-user state of its own: every
// call loads the session from Sessions and saves it back. Calls for the same
// user must not overlap; Dispatcher guarantees that.
type Machine struct {
	Catalog  Catalog
	Users    Users
	Orders   Orders
	Sessions session.Store

	Labels  config.Labels
	Keys    keyboard.Builder
	Pricing cart.Pricing

	Hours       config.WorkingHours
	Location    *time.Location
	AdminChatID int64
	TimeOptions []int
	SessionTTL  time.Duration

	Now func() time.Time
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Catalog  Catalog
	Users    Users
	Orders   Orders
	Sessions session.Store
}

// NewMachine builds a Machine from the application config.
func NewMachine(cfg config.Config, labels config.Labels, d Deps) *Machine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Machine{
		Catalog:  d.Catalog,
		Users:    d.Users,
		Orders:   d.Orders,
		Sessions: d.Sessions,
		Labels:   labels,
		Keys:     keyboard.New(labels.Buttons),
		Pricing: cart.Pricing{
			FreeDeliveryThreshold: cfg.Pricing.FreeDeliveryThreshold,
			Fee:                   cfg.Pricing.DeliveryFee,
			Currency:              cfg.Pricing.Currency,
		},
		Hours:       cfg.WorkingHours,
		Location:    loc,
		AdminChatID: cfg.Bot.AdminChatID,
		TimeOptions: cfg.DeliveryTimeOptions,
		SessionTTL:  cfg.Bot.SessionTTL,
		Now:         time.Now,
	}
}

func (m *Machine) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// turn is the context of one Handle call.
type turn struct {
	ev   Event
	sess *session.Session
	log  zerolog.Logger
}

// Handle processes one event and returns the replies to send. On error the
// session is not saved, so the user's state does not advance.
func (m *Machine) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	kind := ev.Kind()
	start := time.Now()
	observability.BotUpdate(kind)
	defer func() { observability.ObserveHandle(kind, time.Since(start).Seconds()) }()

	ctx, span := observability.Start(ctx, "bot", "Handle",
		attribute.Int64("user.id", ev.UserID),
		attribute.String("event.kind", kind),
	)
	defer span.End()

	replies, err := m.handle(ctx, ev)
	observability.Fail(span, err)
	return replies, err
}

func (m *Machine) handle(ctx context.Context, ev Event) ([]Reply, error) {
	if ev.Callback != nil {
		return m.onCallback(ctx, ev, *ev.Callback)
	}
	if m.isAdminChat(ev.ChatID) && isAdminCommand(ev.Command) {
		return m.onAdminCommand(ctx, ev)
	}

	sess, err := m.Sessions.Get(ctx, ev.UserID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	t := &turn{
		ev:   ev,
		sess: sess,
		log:  log.With().Int64("user_id", ev.UserID).Str("state", string(sess.State)).Logger(),
	}

	if sess.Expired(now, m.SessionTTL) && !onboarding(sess.State) {
		t.log.Debug().Msg("session idle; back to start")
		sess.Reset()
	}

	from := sess.State
	replies, err := m.route(ctx, t)
	if err != nil {
		return nil, err
	}
	sess.UpdatedAt = now
	if err := m.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	observability.StateTransition(string(from), string(sess.State))
	return replies, nil
}

func onboarding(s session.State) bool {
	return s == session.StateName || s == session.StatePhone || s == session.StateBirthday
}

func (m *Machine) isAdminChat(chatID int64) bool {
	return m.AdminChatID != 0 && chatID == m.AdminChatID
}

func (m *Machine) route(ctx context.Context, t *turn) ([]Reply, error) {
	if t.ev.Command == "start" {
		return m.start(ctx, t)
	}
	switch t.sess.State {
	case session.StateInitial:
		return m.onInitial(ctx, t)
	case session.StateName:
		return m.onName(ctx, t)
	case session.StatePhone:
		return m.onPhone(ctx, t)
	case session.StateBirthday:
		return m.onBirthday(ctx, t)
	case session.StateChoosingCategory:
		return m.onCategory(ctx, t)
	case session.StateChoosingProduct:
		return m.onProduct(ctx, t)
	case session.StateTypingQuantity:
		return m.onQuantity(ctx, t)
	case session.StateEditingCart:
		return m.onCart(ctx, t)
	case session.StateOrdering:
		return m.onOrdering(ctx, t)
	case session.StateSettings:
		return m.onSettings(ctx, t)
	case session.StateSettingsName:
		return m.onSettingsName(ctx, t)
	case session.StateSettingsPhone:
		return m.onSettingsPhone(ctx, t)
	default:
		t.log.Warn().Msg("unknown state; restarting")
		return m.start(ctx, t)
	}
}

// onCallback handles inline-button presses. Callbacks do not advance the
// presser's dialogue state.
func (m *Machine) onCallback(ctx context.Context, ev Event, d callback.Data) ([]Reply, error) {
	switch d.Kind {
	case callback.KindDeliveryTime:
		return m.onDeliveryTime(ctx, ev, d)
	case callback.KindOrderConfirm:
		return m.onOrderDecision(ctx, ev, d.OrderID, domain.OrderConfirmed)
	case callback.KindOrderCancel:
		return m.onOrderDecision(ctx, ev, d.OrderID, domain.OrderCancelled)
	default:
		log.Warn().Int64("user_id", ev.UserID).Str("data", d.Raw).Msg("unknown callback")
		return nil, nil
	}
}

// lines resolves the cart, dropping items whose product left the catalog.
func (m *Machine) lines(t *turn) []cart.Line {
	out := make([]cart.Line, 0, len(t.sess.Cart.Items))
	kept := t.sess.Cart.Items[:0]
	for _, it := range t.sess.Cart.Items {
		p, ok := m.Catalog.FindProductByID(it.ProductID)
		if !ok {
			t.log.Warn().Uint("product_id", it.ProductID).Msg("dropping unknown product from cart")
			continue
		}
		kept = append(kept, it)
		out = append(out, cart.Line{Product: p, Quantity: it.Quantity})
	}
	t.sess.Cart.Items = kept
	return out
}

func (m *Machine) cartTexts() cart.Texts {
	tx := m.Labels.Texts
	return cart.Texts{Title: tx.CartTitle, Empty: tx.EmptyCart, Delivery: tx.DeliveryLine, Total: tx.Total}
}

func (m *Machine) text(chatID int64, s string) Reply {
	return Reply{ChatID: chatID, Text: s}
}

func (m *Machine) withKeyboard(chatID int64, s string, kb keyboard.Keyboard) Reply {
	return Reply{ChatID: chatID, Text: s, Keyboard: &kb}
}

// ignore logs a lookup miss. The state is left as is and nothing is sent.
func ignore(t *turn, what string) ([]Reply, error) {
	t.log.Info().Str("text", t.ev.Text).Msg(what)
	return nil, nil
}
