package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// ErrAlreadyFinalized is returned by FinalizeOrder when the order exists but
// has already left the initial status.
var ErrAlreadyFinalized = errors.New("order already finalized")

// AddOrder inserts an order and fills in its generated ID.
func AddOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	if o.Status == "" {
		o.Status = domain.OrderInitial
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(o).Error
}

// UpdateOrder sets a single column on an order. It returns ErrNotFound when
// no row matched.
func UpdateOrder(ctx context.Context, db *gorm.DB, id uint, column string, value any) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeOrder moves an initial order to a terminal status. The update is
// conditional on status = 'initial', so of two racing callers exactly one
// succeeds and the other gets ErrAlreadyFinalized.
func FinalizeOrder(ctx context.Context, db *gorm.DB, id uint, status domain.OrderStatus, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderInitial).
		Updates(map[string]any{
			"status":       status,
			"finalized_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Nothing changed: tell "missing" apart from "already done".
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrAlreadyFinalized
}

// GetOrder fetches an order by id.
func GetOrder(ctx context.Context, db *gorm.DB, id uint) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderFilter narrows order listings. Zero values mean "any".
type OrderFilter struct {
	Status domain.OrderStatus
	UserID int64
}

func (f OrderFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

// CountOrders returns the number of orders matching f.
func CountOrders(ctx context.Context, db *gorm.DB, f OrderFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Order{})).Count(&total).Error
	return total, err
}

// ListOrdersPage returns a page of orders matching f, newest first.
func ListOrdersPage(ctx context.Context, db *gorm.DB, f OrderFilter, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := f.apply(db.WithContext(ctx)).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListOrders returns all orders matching f in creation order, for reports.
func ListOrders(ctx context.Context, db *gorm.DB, f OrderFilter) ([]domain.Order, error) {
	var out []domain.Order
	err := f.apply(db.WithContext(ctx)).Order("created_at asc, id asc").Find(&out).Error
	return out, err
}
