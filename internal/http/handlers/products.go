package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/utils"
)

const defaultSearchLimit = 10

// ProductHit is a search result.
type ProductHit struct {
	domain.Product
	Score float64 `json:"score" example:"0.5"`
}

// ListProductsResponse carries either the whole menu or ranked hits for q.
type ListProductsResponse struct {
	Products []domain.Product `json:"products,omitempty"`
	Hits     []ProductHit     `json:"hits,omitempty"`
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List or search the menu
// @Description Without q the whole menu is returned in display order.
// @Tags        Products
// @Produce     json
// @Security    ApiKeyAuth
// @Param       q      query  string  false  "Free-text query"
// @Param       limit  query  int     false  "Max hits"  minimum(1) maximum(100) default(10)
// @Success     200  {object}  handlers.ListProductsResponse
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		ok(c, http.StatusOK, ListProductsResponse{Products: h.catalog.Products()})
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), defaultSearchLimit)
	if limit < 1 || limit > maxPageSize {
		limit = defaultSearchLimit
	}
	hits := h.catalog.Search(q, limit)
	out := make([]ProductHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, ProductHit{Product: hit.Product, Score: hit.Score})
	}
	ok(c, http.StatusOK, ListProductsResponse{Hits: out})
}
