package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/repo"
)

// ListUsersResponse is a page of customer profiles.
type ListUsersResponse struct {
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List customers (paginated)
// @Tags        Users
// @Produce     json
// @Security    ApiKeyAuth
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListUsersResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if h.DB != nil {
		if count, latest, err := repo.UsersStats(ctx, h.DB); err == nil {
			if notModified(c, fmt.Sprintf("users:%d:%d", page, pageSize), count, latest) {
				return
			}
		}
	}

	items, total, err := h.users.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListUsersResponse{Users: items, Pagination: paginate(page, pageSize, total)})
}
