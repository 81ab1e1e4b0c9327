// Package catalog is the read-only view of the menu used by the bot: category
// and subcategory listings, product lookups, and a small text search.
//
// A Catalog is built once from the products table and never mutated, so any
// number of goroutines may read it without locking.
package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/repo"
)

// Catalog is an immutable snapshot of the menu.
type Catalog struct {
	products   []domain.Product
	byID       map[uint]int
	categories []string
	subs       map[string][]string // category -> distinct subcategories, first-seen order
	names      map[string]struct{} // every category and subcategory label
	index      *index
}

// New builds a Catalog from products in display order. The slice is copied.
func New(products []domain.Product, opts ...Option) *Catalog {
	c := &Catalog{
		products: append([]domain.Product(nil), products...),
		byID:     make(map[uint]int, len(products)),
		subs:     make(map[string][]string),
		names:    make(map[string]struct{}),
	}
	seenSub := make(map[[2]string]struct{})
	for i, p := range c.products {
		c.byID[p.ID] = i
		if _, ok := c.subs[p.Category]; !ok {
			c.categories = append(c.categories, p.Category)
			c.subs[p.Category] = nil
			c.names[p.Category] = struct{}{}
		}
		k := [2]string{p.Category, p.Subcategory}
		if _, ok := seenSub[k]; !ok {
			seenSub[k] = struct{}{}
			c.subs[p.Category] = append(c.subs[p.Category], p.Subcategory)
			if p.Subcategory != "" {
				c.names[p.Subcategory] = struct{}{}
			}
		}
	}
	c.index = buildIndex(c.products, opts...)
	return c
}

// Load reads the products table and builds a Catalog from it.
func Load(ctx context.Context, db *gorm.DB, opts ...Option) (*Catalog, error) {
	ps, err := repo.ListProducts(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(ps, opts...), nil
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// Products returns a copy of every product in display order.
func (c *Catalog) Products() []domain.Product {
	return append([]domain.Product(nil), c.products...)
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Subcategories returns the distinct subcategories of category in first-seen
// order. The empty string marks products that have no subcategory.
func (c *Catalog) Subcategories(category string) []string {
	return append([]string(nil), c.subs[category]...)
}

// HasSubcategories reports whether category has at least one named
// subcategory.
func (c *Catalog) HasSubcategories(category string) bool {
	for _, s := range c.subs[category] {
		if s != "" {
			return true
		}
	}
	return false
}

// ProductTitles returns the distinct titles of products whose category or
// subcategory equals label, in display order.
func (c *Catalog) ProductTitles(label string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range c.products {
		if p.Category != label && p.Subcategory != label {
			continue
		}
		if _, ok := seen[p.Title]; ok {
			continue
		}
		seen[p.Title] = struct{}{}
		out = append(out, p.Title)
	}
	return out
}

// FindProduct returns the first product titled title whose category or
// subcategory equals label.
func (c *Catalog) FindProduct(title, label string) (domain.Product, bool) {
	for _, p := range c.products {
		if p.Title == title && (p.Category == label || p.Subcategory == label) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// FindProductByID returns the product with the given id.
func (c *Catalog) FindProductByID(id uint) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// CategoryExists reports whether text is a category or a subcategory.
func (c *Catalog) CategoryExists(text string) bool {
	_, ok := c.names[text]
	return ok
}

// IsCategory reports whether text is a top-level category.
func (c *Catalog) IsCategory(text string) bool {
	_, ok := c.subs[text]
	return ok
}

// Search ranks products against a free-text query. See index.TopK.
func (c *Catalog) Search(query string, k int) []Hit {
	return c.index.TopK(query, k)
}
