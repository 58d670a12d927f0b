package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loomstore/internal/database"
	"loomstore/internal/database/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, stock, threshold int) models.Product {
	t.Helper()
	p := models.Product{
		Name:              name,
		Price:             decimal.RequireFromString("9.99"),
		Stock:             stock,
		LowStockThreshold: threshold,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestGetProduct(t *testing.T) {
	db := newTestDB(t)
	h := NewCatalogHandler(db, zap.NewNop())
	ctx := context.Background()

	tea := seedProduct(t, db, "Tea", 10, 5)

	got, err := h.GetProduct(ctx, tea.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Name != "Tea" {
		t.Errorf("name = %q, want Tea", got.Name)
	}

	if _, err := h.GetProduct(ctx, 9999); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestSetStock(t *testing.T) {
	db := newTestDB(t)
	h := NewCatalogHandler(db, zap.NewNop())
	ctx := context.Background()

	tea := seedProduct(t, db, "Tea", 10, 5)

	if err := h.SetStock(ctx, tea.ID, 42); err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	var after models.Product
	db.First(&after, tea.ID)
	if after.Stock != 42 {
		t.Errorf("stock = %d, want 42", after.Stock)
	}

	if err := h.SetStock(ctx, 9999, 1); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestLowStock(t *testing.T) {
	db := newTestDB(t)
	h := NewCatalogHandler(db, zap.NewNop())
	ctx := context.Background()

	seedProduct(t, db, "Plenty", 100, 5)
	seedProduct(t, db, "AtThreshold", 5, 5)
	seedProduct(t, db, "Empty", 0, 5)

	low, err := h.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("low stock = %d products, want 2", len(low))
	}
	// Most depleted first.
	if low[0].Name != "Empty" || low[1].Name != "AtThreshold" {
		t.Errorf("order = %q, %q; want Empty, AtThreshold", low[0].Name, low[1].Name)
	}
}
