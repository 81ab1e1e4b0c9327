package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/catalog"
	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/utils"
)

// OrderService is the order workflow used by the API.
// *services.OrderService implements it.
type OrderService interface {
	Get(ctx context.Context, orderID uint) (*domain.Order, error)
	ListPage(ctx context.Context, f repo.OrderFilter, page, pageSize int) ([]domain.Order, int64, error)
	All(ctx context.Context, f repo.OrderFilter) ([]domain.Order, error)
	FinalizeAndNotify(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.Order, error)
}

// UserService lists customer profiles. *services.UserService implements it.
type UserService interface {
	ListPage(ctx context.Context, page, pageSize int) ([]domain.User, int64, error)
}

// Catalog is the menu. *catalog.Catalog implements it.
type Catalog interface {
	Products() []domain.Product
	Search(query string, k int) []catalog.Hit
}

// Handlers groups the operator endpoints.
type Handlers struct {
	orders  OrderService
	users   UserService
	catalog Catalog

	// DB backs the weak ETags of list endpoints; nil disables them.
	DB *gorm.DB
}

// New binds handlers to their services.
func New(orders OrderService, users UserService, cat Catalog) *Handlers {
	return &Handlers{orders: orders, users: users, catalog: cat}
}

// Pagination is the paging block of list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// clampPagination reads page and page_size, bounded to [1, maxPageSize].
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// notModified sets a weak ETag built from scope, count and the latest update
// and reports whether the client's If-None-Match already matches it.
func notModified(c *gin.Context, scope string, count int64, latest *time.Time) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
