package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/observability"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/utils"
)

// editable lists the profile columns the bot may change field by field.
var editable = map[string]struct{}{
	"username":      {},
	"first_name":    {},
	"last_name":     {},
	"phone":         {},
	"date_of_birth": {},
}

// UserService manages customer profiles.
type UserService struct {
	DB *gorm.DB
}

// NewUserService returns a UserService over db.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Get returns the user or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %w", ErrPersistence, err)
	}
	return u, nil
}

// Register stores a new profile. Registering an existing id returns the
// stored profile unchanged.
func (s *UserService) Register(ctx context.Context, u *domain.User) (*domain.User, error) {
	ctx, span := observability.Start(ctx, "users", "Register", attribute.Int64("user.id", u.ID))
	defer span.End()

	existing, err := s.Get(ctx, u.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		observability.Fail(span, err)
		return nil, err
	}
	if err := repo.AddUser(ctx, s.DB, u); err != nil {
		observability.Fail(span, err)
		return nil, fmt.Errorf("%w: add user: %w", ErrPersistence, err)
	}
	return u, nil
}

// UpdateField sets one whitelisted profile column.
func (s *UserService) UpdateField(ctx context.Context, id int64, column string, value any) error {
	if _, ok := editable[column]; !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotEditable, column)
	}
	err := repo.UpdateUser(ctx, s.DB, id, column, value)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: update user: %w", ErrPersistence, err)
	}
	return nil
}

// ListAll returns every registered user. Used for broadcasts.
func (s *UserService) ListAll(ctx context.Context) ([]domain.User, error) {
	us, err := repo.ListUsers(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrPersistence, err)
	}
	return us, nil
}

// ListPage returns a page of users, newest first, and the total count.
func (s *UserService) ListPage(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	offset, limit := utils.Page(page, pageSize, 0)
	total, err := repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}
	items, err := repo.ListUsersPage(ctx, s.DB, offset, limit)
	return items, total, err
}
