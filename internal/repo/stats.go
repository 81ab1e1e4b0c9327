// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the operator API.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// OrdersStats returns the number of orders matching f and the greatest
// UpdatedAt among them. With no rows, count is 0 and maxUpdatedAt is nil.
func OrdersStats(ctx context.Context, db *gorm.DB, f OrderFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Order{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = f.apply(db.WithContext(ctx).Model(&domain.Order{}))
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// UsersStats is the users-table counterpart of OrdersStats.
func UsersStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.User{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.User{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
