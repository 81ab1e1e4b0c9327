package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/http/middleware"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/services"
)

// ListOrdersResponse is a page of orders.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// UpdateStatusRequest finalizes an order.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=confirmed cancelled" example:"confirmed"`
}

// orderFilter reads the status and user_id query parameters.
func orderFilter(c *gin.Context) (repo.OrderFilter, bool) {
	var f repo.OrderFilter
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		f.Status = domain.OrderStatus(s)
		if !f.Status.Valid() {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be initial, confirmed or cancelled")
			return f, false
		}
	}
	if s := strings.TrimSpace(c.Query("user_id")); s != "" {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be an integer")
			return f, false
		}
		f.UserID = uid
	}
	return f, true
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders (paginated)
// @Description Newest first. Supports a weak ETag via If-None-Match.
// @Tags        Orders
// @Produce     json
// @Security    ApiKeyAuth
// @Param       status     query  string  false  "Filter by status"  Enums(initial, confirmed, cancelled)
// @Param       user_id    query  int     false  "Filter by customer"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListOrdersResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	f, valid := orderFilter(c)
	if !valid {
		return
	}
	page, pageSize := clampPagination(c)

	if h.DB != nil {
		if count, latest, err := repo.OrdersStats(ctx, h.DB, f); err == nil {
			scope := fmt.Sprintf("orders:%s:%d:%d:%d", f.Status, f.UserID, page, pageSize)
			if notModified(c, scope, count, latest) {
				return
			}
		}
	}

	items, total, err := h.orders.ListPage(ctx, f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListOrdersResponse{Orders: items, Pagination: paginate(page, pageSize, total)})
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order
// @Tags        Orders
// @Produce     json
// @Security    ApiKeyAuth
// @Param       id   path  int  true  "Order ID"
// @Success     200  {object}  domain.Order
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /orders/{id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, o)
	}
}

// UpdateOrderStatus godoc
// @ID          updateOrderStatus
// @Summary     Confirm or cancel an order
// @Description An order leaves status initial exactly once; later calls get 409.
// @Tags        Orders
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       id    path  int                            true  "Order ID"
// @Param       body  body  handlers.UpdateStatusRequest  true  "Target status"
// @Success     200  {object}  domain.Order
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /orders/{id}/status [post]
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be confirmed or cancelled")
		return
	}

	o, err := h.orders.FinalizeAndNotify(c.Request.Context(), id, domain.OrderStatus(req.Status))
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
	case errors.Is(err, services.ErrOrderAlreadyFinalized):
		fail(c, http.StatusConflict, ErrCodeConflict, "order already finalized")
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
	default:
		middleware.LoggerFrom(c).Info().Uint("order_id", id).Str("status", req.Status).Msg("order finalized by operator")
		ok(c, http.StatusOK, o)
	}
}

// OrdersReport godoc
// @ID          ordersReport
// @Summary     Export orders as CSV
// @Tags        Orders
// @Produce     text/csv
// @Security    ApiKeyAuth
// @Param       status   query  string  false  "Filter by status"  Enums(initial, confirmed, cancelled)
// @Param       user_id  query  int     false  "Filter by customer"
// @Success     200  {string}  string  "CSV file"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /orders/report.csv [get]
func (h *Handlers) OrdersReport(c *gin.Context) {
	f, valid := orderFilter(c)
	if !valid {
		return
	}
	orders, err := h.orders.All(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="orders.csv"`)
	c.Status(http.StatusOK)
	if err := services.WriteOrdersCSV(c.Writer, orders); err != nil {
		_ = c.Error(err)
	}
}
