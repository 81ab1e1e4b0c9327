// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They do
// no business validation; callers (services.UserService) decide which
// columns may change.
//
// Error semantics:
//   - A missing user yields gorm.ErrRecordNotFound (ErrNotFound).
//   - Other DB errors are propagated as-is.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser fetches a user by platform id.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// AddUser inserts a user. CreatedAt defaults to now (UTC) when unset.
func AddUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(u).Error
}

// UpdateUser sets a single column on the user identified by id. It returns
// ErrNotFound when no row matched.
func UpdateUser(ctx context.Context, db *gorm.DB, id int64, column string, value any) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
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

// ListUsers returns every user ordered by registration time.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("created_at asc, id asc").Find(&out).Error
	return out, err
}

// CountUsers returns the number of registered users.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error
	return total, err
}

// ListUsersPage returns a page of users, most recent registrations first.
func ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
