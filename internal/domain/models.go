// Package domain defines the persistence models for users, products, and
// orders. These types are mapped with GORM and shared across the repository,
// service, and bot layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a bot user keyed by the messaging platform's user id. Profile
// fields stay empty until onboarding fills them in.
//
// Fields:
//   - ID: platform user id (primary key, not auto-incremented).
//   - Username / FirstName / LastName: display name parts.
//   - Phone: contact phone collected during onboarding.
//   - DateOfBirth: optional, the user may skip it.
//   - CreatedAt: registration timestamp.
type User struct {
	ID          int64      `json:"id"            gorm:"primaryKey;autoIncrement:false"`
	Username    string     `json:"username"      gorm:"type:varchar(64)"`
	FirstName   string     `json:"first_name"    gorm:"type:varchar(255)"`
	LastName    string     `json:"last_name"     gorm:"type:varchar(255)"`
	Phone       string     `json:"phone"         gorm:"type:varchar(32)"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Product is a sellable catalog item. A (title, category, subcategory) triple
// identifies one variant, e.g. the same pizza in 30 and 45 cm.
type Product struct {
	ID          uint            `json:"id"          gorm:"primaryKey"`
	Title       string          `json:"title"       gorm:"type:varchar(255);not null;uniqueIndex:ux_product_variant,priority:1"`
	Category    string          `json:"category"    gorm:"type:varchar(255);not null;index;uniqueIndex:ux_product_variant,priority:2"`
	Subcategory string          `json:"subcategory" gorm:"type:varchar(255);not null;default:'';uniqueIndex:ux_product_variant,priority:3"`
	Price       decimal.Decimal `json:"price"       gorm:"type:numeric(10,2);not null;check:price >= 0"`
	Weight      string          `json:"weight,omitempty"  gorm:"type:varchar(64)"`
	Composition string          `json:"composition" gorm:"type:text"`
	ImageURL    string          `json:"image_url,omitempty" gorm:"type:varchar(512)"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderInitial   OrderStatus = "initial"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderInitial, OrderConfirmed, OrderCancelled:
		return true
	}
	return false
}

// Final reports whether s is a terminal status.
func (s OrderStatus) Final() bool {
	return s == OrderConfirmed || s == OrderCancelled
}

// DeliveryType says how the customer receives the order.
type DeliveryType string

const (
	Delivery DeliveryType = "delivery"
	SelfPick DeliveryType = "self_pick"
)

// PaymentType says how the customer pays.
type PaymentType string

const (
	PayCash     PaymentType = "cash"
	PayTerminal PaymentType = "terminal"
)

// Order is a submitted cart. It is created with status initial and moves to
// confirmed or cancelled exactly once.
//
// Fields:
//   - Cart: flattened description of the cart lines at submission time.
//   - Address / Latitude / Longitude: set only for delivery orders.
//   - Price: cart total plus delivery fee.
//   - FinalizedAt: set together with the terminal status.
type Order struct {
	ID           uint            `json:"id"            gorm:"primaryKey"`
	UserID       int64           `json:"user_id"       gorm:"not null;index:idx_user_orders"`
	Cart         string          `json:"cart"          gorm:"type:text;not null"`
	DeliveryType DeliveryType    `json:"delivery_type" gorm:"type:varchar(16);not null;check:delivery_type IN ('delivery','self_pick')"`
	Address      string          `json:"address,omitempty" gorm:"type:text"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	PaymentType  PaymentType     `json:"payment_type"  gorm:"type:varchar(16);not null;check:payment_type IN ('cash','terminal')"`
	Status       OrderStatus     `json:"status"        gorm:"type:varchar(16);not null;default:'initial';index;check:status IN ('initial','confirmed','cancelled')"`
	Price        decimal.Decimal `json:"price"         gorm:"type:numeric(10,2);not null"`
	CreatedAt    time.Time       `json:"created_at"    gorm:"index"`
	UpdatedAt    time.Time       `json:"updated_at"`
	FinalizedAt  *time.Time      `json:"finalized_at,omitempty"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }
