// Package session holds the per-user conversation record and the stores that
// keep it between messages.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-delivery-bot/internal/cart"
	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// Version is the schema version written by Encode. Records with any other
// version are discarded by the stores and the user starts over.
const Version = 1

// ErrVersion is returned by Decode for records of another schema version.
var ErrVersion = errors.New("unsupported session version")

// State is the dialogue state.
type State string

const (
	StateInitial          State = "initial"
	StateName             State = "name"
	StatePhone            State = "phone"
	StateBirthday         State = "birthday"
	StateChoosingCategory State = "choosing_category"
	StateChoosingProduct  State = "choosing_product"
	StateTypingQuantity   State = "typing_quantity"
	StateEditingCart      State = "editing_cart"
	StateOrdering         State = "ordering"
	StateSettings         State = "settings"
	StateSettingsName     State = "settings_name"
	StateSettingsPhone    State = "settings_phone"
)

// Step is the checkout sub-step inside StateOrdering.
type Step string

const (
	StepNone      Step = ""
	StepOrderType Step = "order_type"
	StepAddress   Step = "address"
	StepPayment   Step = "payment"
	StepConfirm   Step = "confirm"
)

// Location is a shared geolocation.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
}

// Session is one user's conversation record.
type Session struct {
	UserID  int64 `json:"user_id"`
	Version int   `json:"version"`
	State   State `json:"state"`
	Step    Step  `json:"step,omitempty"`

	// Scope is the category whose subcategories are on screen; Category is
	// the label (category or subcategory) products are listed for.
	Scope     string `json:"scope,omitempty"`
	Category  string `json:"category,omitempty"`
	ProductID uint   `json:"product_id,omitempty"`

	Cart cart.Cart `json:"cart"`

	DeliveryType   domain.DeliveryType `json:"delivery_type,omitempty"`
	Address        string              `json:"address,omitempty"`
	Location       *Location           `json:"location,omitempty"`
	PaymentType    domain.PaymentType  `json:"payment_type,omitempty"`
	PendingOrderID uint                `json:"pending_order_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty session in StateInitial.
func New(userID int64) *Session {
	return &Session{UserID: userID, Version: Version, State: StateInitial}
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > ttl
}

// Reset returns the dialogue to StateInitial. The cart and the pending order
// survive.
func (s *Session) Reset() {
	s.State = StateInitial
	s.Scope, s.Category, s.ProductID = "", "", 0
	s.ClearCheckout()
}

// ClearCheckout forgets the delivery and payment choices.
func (s *Session) ClearCheckout() {
	s.Step = StepNone
	s.DeliveryType = ""
	s.Address = ""
	s.Location = nil
	s.PaymentType = ""
}

// Delivering reports whether the delivery surcharge applies.
func (s *Session) Delivering() bool {
	return s.DeliveryType == domain.Delivery
}

// Encode serializes s with the current schema version.
func Encode(s *Session) ([]byte, error) {
	cp := *s
	cp.Version = Version
	return json.Marshal(&cp)
}

// Decode parses a record written by Encode.
func Decode(raw []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, s.Version)
	}
	return &s, nil
}
