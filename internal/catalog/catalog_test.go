package catalog

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/repo"
)

func fixture() []domain.Product {
	d := decimal.RequireFromString
	return []domain.Product{
		{ID: 1, Title: "Pizza Margarita", Category: "Pizza", Subcategory: "30cm", Price: d("7.50"), Composition: "tomato, mozzarella"},
		{ID: 2, Title: "Pizza Margarita", Category: "Pizza", Subcategory: "45cm", Price: d("13.00"), Composition: "tomato, mozzarella"},
		{ID: 3, Title: "Pizza Diablo", Category: "Pizza", Subcategory: "30cm", Price: d("9.00"), Composition: "salami, chili"},
		{ID: 4, Title: "Roll Canada", Category: "Rolls", Subcategory: "4pcs", Price: d("8.00"), Composition: "eel, cucumber"},
		{ID: 5, Title: "Hamburger", Category: "Burgers", Price: d("2.00"), Composition: "bun, beef, pickle"},
		{ID: 6, Title: "Pepsi 0,5", Category: "Drinks", Price: d("1.50")},
	}
}

func TestCatalog_Listings(t *testing.T) {
	c := New(fixture())

	if got := c.Categories(); !reflect.DeepEqual(got, []string{"Pizza", "Rolls", "Burgers", "Drinks"}) {
		t.Fatalf("Categories = %v", got)
	}
	if got := c.Subcategories("Pizza"); !reflect.DeepEqual(got, []string{"30cm", "45cm"}) {
		t.Fatalf("Subcategories(Pizza) = %v", got)
	}
	if got := c.Subcategories("Burgers"); !reflect.DeepEqual(got, []string{""}) {
		t.Fatalf("Subcategories(Burgers) should hold the empty marker, got %q", got)
	}
	if !c.HasSubcategories("Pizza") || c.HasSubcategories("Burgers") || c.HasSubcategories("Nope") {
		t.Fatalf("HasSubcategories unexpected")
	}

	if got := c.ProductTitles("30cm"); !reflect.DeepEqual(got, []string{"Pizza Margarita", "Pizza Diablo"}) {
		t.Fatalf("ProductTitles(30cm) = %v", got)
	}
	if got := c.ProductTitles("Pizza"); !reflect.DeepEqual(got, []string{"Pizza Margarita", "Pizza Diablo"}) {
		t.Fatalf("ProductTitles(Pizza) should dedupe titles, got %v", got)
	}
	if got := c.ProductTitles("Burgers"); !reflect.DeepEqual(got, []string{"Hamburger"}) {
		t.Fatalf("ProductTitles(Burgers) = %v", got)
	}

	for _, s := range []string{"Pizza", "45cm", "Drinks"} {
		if !c.CategoryExists(s) {
			t.Fatalf("CategoryExists(%q) = false", s)
		}
	}
	if c.CategoryExists("") || c.CategoryExists("Sushi") {
		t.Fatalf("CategoryExists should reject unknown labels")
	}
	if !c.IsCategory("Rolls") || c.IsCategory("4pcs") {
		t.Fatalf("IsCategory unexpected")
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := New(fixture())

	p, ok := c.FindProduct("Pizza Margarita", "45cm")
	if !ok || p.ID != 2 {
		t.Fatalf("FindProduct by subcategory = %+v, %v", p, ok)
	}
	p, ok = c.FindProduct("Hamburger", "Burgers")
	if !ok || p.ID != 5 {
		t.Fatalf("FindProduct by category = %+v, %v", p, ok)
	}
	if _, ok := c.FindProduct("Hamburger", "Pizza"); ok {
		t.Fatalf("FindProduct must respect the category context")
	}

	if p, ok := c.FindProductByID(4); !ok || p.Title != "Roll Canada" {
		t.Fatalf("FindProductByID(4) = %+v, %v", p, ok)
	}
	if _, ok := c.FindProductByID(99); ok {
		t.Fatalf("FindProductByID(99) should miss")
	}
	if c.Len() != 6 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := New(fixture())
	cats := c.Categories()
	cats[0] = "mutated"
	if c.Categories()[0] != "Pizza" {
		t.Fatalf("Categories must not expose internal state")
	}
	ps := c.Products()
	ps[0].Title = "mutated"
	if p, _ := c.FindProductByID(1); p.Title != "Pizza Margarita" {
		t.Fatalf("Products must not expose internal state")
	}
}

func TestCatalog_ConcurrentReads(t *testing.T) {
	c := New(fixture())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = c.ProductTitles("Pizza")
				_, _ = c.FindProduct("Pizza Diablo", "30cm")
				_ = c.Search("mozzarella", 3)
			}
		}()
	}
	wg.Wait()
}

func TestSearch_RanksByOverlap(t *testing.T) {
	c := New(fixture(), WithStopwords([]string{"pizza"}))

	hits := c.Search("margarita mozzarella", 3)
	if len(hits) < 2 {
		t.Fatalf("expected both margarita variants, got %+v", hits)
	}
	if hits[0].Product.Title != "Pizza Margarita" || hits[0].Product.ID != 1 {
		t.Fatalf("tie should keep catalog order, got %+v", hits[0])
	}
	if hits[0].Score <= 0 || hits[0].Score > 1 {
		t.Fatalf("score out of range: %v", hits[0].Score)
	}

	if hits := c.Search("pizza", 3); hits != nil {
		t.Fatalf("stopword-only query should return nil, got %+v", hits)
	}
	if hits := c.Search("   ", 3); hits != nil {
		t.Fatalf("blank query should return nil")
	}
	if hits := c.Search("sushi", 3); hits != nil {
		t.Fatalf("no overlap should return nil")
	}
	if hits := c.Search("beef", 0); len(hits) != 1 || hits[0].Product.Title != "Hamburger" {
		t.Fatalf("default k search = %+v", hits)
	}
}

func TestParseSeed(t *testing.T) {
	ps, err := DefaultMenu()
	if err != nil {
		t.Fatalf("DefaultMenu: %v", err)
	}
	if len(ps) < 50 {
		t.Fatalf("embedded menu too small: %d", len(ps))
	}
	c := New(ps)
	if !c.HasSubcategories("Пиццы") || c.HasSubcategories("Напитки") {
		t.Fatalf("embedded menu shape unexpected: %v", c.Categories())
	}

	bad := []string{
		"products: []",
		"products:\n  - title: x\n    category: y\n    price: abc\n",
		"products:\n  - title: x\n    category: y\n    price: \"-1\"\n",
		"products:\n  - title: x\n    category: y\n    price: \"1\"\n  - title: x\n    category: y\n    price: \"2\"\n",
		"products: [",
	}
	for _, raw := range bad {
		if _, err := ParseSeed([]byte(raw)); err == nil {
			t.Fatalf("ParseSeed(%q) should fail", raw)
		}
	}
}

func newCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestSeedAndLoad(t *testing.T) {
	ctx := context.Background()
	db := newCatalogDB(t)

	n, err := Seed(ctx, db)
	if err != nil || n == 0 {
		t.Fatalf("Seed = %d, %v", n, err)
	}
	again, err := Seed(ctx, db)
	if err != nil || again != 0 {
		t.Fatalf("second Seed should be a no-op, got %d, %v", again, err)
	}

	c, err := Load(ctx, db)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != n {
		t.Fatalf("Load len = %d, want %d", c.Len(), n)
	}
	p, ok := c.FindProduct("Пицца Маргарита", "30см")
	if !ok || !p.Price.Equal(decimal.RequireFromString("7.5")) || p.ID == 0 {
		t.Fatalf("seeded product = %+v, %v", p, ok)
	}
	if !strings.Contains(p.Composition, "моцарелла") {
		t.Fatalf("composition lost: %q", p.Composition)
	}
}
