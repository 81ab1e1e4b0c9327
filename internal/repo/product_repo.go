package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// ListProducts returns the whole catalog in insertion order, which is the
// order categories and products are shown to users.
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// CountProducts returns the number of catalog rows.
func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Count(&total).Error
	return total, err
}

// AddProducts inserts products in one transaction.
func AddProducts(ctx context.Context, db *gorm.DB, ps []domain.Product) error {
	if len(ps) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(ps, 100).Error
	})
}
