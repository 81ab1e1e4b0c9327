package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/repo"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Products []seedProduct `yaml:"products" validate:"required,min=1,dive"`
}

type seedProduct struct {
	Title       string `yaml:"title"       validate:"required"`
	Category    string `yaml:"category"    validate:"required"`
	Subcategory string `yaml:"subcategory"`
	Price       string `yaml:"price"       validate:"required,numeric"`
	Weight      string `yaml:"weight"`
	Composition string `yaml:"composition"`
	ImageURL    string `yaml:"image_url"   validate:"omitempty,url"`
}

// ParseSeed decodes and validates a YAML menu.
func ParseSeed(raw []byte) ([]domain.Product, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate seed: %w", err)
	}
	out := make([]domain.Product, 0, len(f.Products))
	seen := make(map[[3]string]struct{}, len(f.Products))
	for i, p := range f.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("seed product %d: price: %w", i, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("seed product %d: negative price", i)
		}
		k := [3]string{p.Title, p.Category, p.Subcategory}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("seed product %d: duplicate %q/%q/%q", i, p.Title, p.Category, p.Subcategory)
		}
		seen[k] = struct{}{}
		out = append(out, domain.Product{
			Title:       p.Title,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			Price:       price,
			Weight:      p.Weight,
			Composition: p.Composition,
			ImageURL:    p.ImageURL,
		})
	}
	return out, nil
}

// DefaultMenu returns the embedded menu.
func DefaultMenu() ([]domain.Product, error) {
	return ParseSeed(seedYAML)
}

// Seed inserts the embedded menu when the products table is empty and
// returns the number of rows inserted.
func Seed(ctx context.Context, db *gorm.DB) (int, error) {
	n, err := repo.CountProducts(ctx, db)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	ps, err := DefaultMenu()
	if err != nil {
		return 0, err
	}
	if err := repo.AddProducts(ctx, db, ps); err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}
	log.Info().Int("products", len(ps)).Msg("catalog seeded")
	return len(ps), nil
}
