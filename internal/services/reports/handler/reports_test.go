package handler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
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

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func seedDeliveredOrder(t *testing.T, db *gorm.DB, userID uint, items ...models.OrderItem) models.Order {
	t.Helper()

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	o := models.Order{
		UserID:     &userID,
		Status:     models.StatusDelivered,
		OrderType:  models.OrderTypeOnline,
		TotalPrice: total,
	}
	if err := db.Create(&o).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for i := range items {
		items[i].OrderID = o.ID
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
	return o
}

func seedProduct(t *testing.T, db *gorm.DB, name string) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.RequireFromString("10.00"), Stock: 100}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestStoreSummary(t *testing.T) {
	db := newTestDB(t)
	h := NewReportsHandler(db, newTestRedis(t), zap.NewNop())
	ctx := context.Background()

	tea := seedProduct(t, db, "Tea")
	mug := seedProduct(t, db, "Mug")

	seedDeliveredOrder(t, db, 1,
		models.OrderItem{ProductID: tea.ID, Quantity: 2, Price: decimal.RequireFromString("10.00")},
	)
	seedDeliveredOrder(t, db, 2,
		models.OrderItem{ProductID: mug.ID, Quantity: 1, Price: decimal.RequireFromString("30.00")},
	)

	// Pending orders stay out of the report.
	pending := models.Order{Status: models.StatusPending, OrderType: models.OrderTypeOnline, TotalPrice: decimal.RequireFromString("99.00")}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	item := models.OrderItem{OrderID: pending.ID, ProductID: tea.ID, Quantity: 9, Price: decimal.RequireFromString("11.00")}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed pending item: %v", err)
	}

	summary, err := h.StoreSummary(ctx)
	if err != nil {
		t.Fatalf("StoreSummary: %v", err)
	}
	if summary.TotalOrders != 2 {
		t.Errorf("total orders = %d, want 2", summary.TotalOrders)
	}
	if want := decimal.RequireFromString("50.00"); !summary.TotalRevenue.Equal(want) {
		t.Errorf("revenue = %s, want %s", summary.TotalRevenue, want)
	}
	if summary.TotalCustomers != 2 {
		t.Errorf("customers = %d, want 2", summary.TotalCustomers)
	}

	// Cached copy agrees.
	again, err := h.StoreSummary(ctx)
	if err != nil {
		t.Fatalf("StoreSummary (cached): %v", err)
	}
	if !again.TotalRevenue.Equal(summary.TotalRevenue) {
		t.Errorf("cached revenue = %s, want %s", again.TotalRevenue, summary.TotalRevenue)
	}
}

func TestBestProducts(t *testing.T) {
	db := newTestDB(t)
	h := NewReportsHandler(db, nil, zap.NewNop())
	ctx := context.Background()

	tea := seedProduct(t, db, "Tea")
	mug := seedProduct(t, db, "Mug")

	seedDeliveredOrder(t, db, 1,
		models.OrderItem{ProductID: tea.ID, Quantity: 5, Price: decimal.RequireFromString("10.00")},
		models.OrderItem{ProductID: mug.ID, Quantity: 1, Price: decimal.RequireFromString("30.00")},
	)
	seedDeliveredOrder(t, db, 2,
		models.OrderItem{ProductID: tea.ID, Quantity: 3, Price: decimal.RequireFromString("10.00")},
	)

	rows, err := h.BestProducts(ctx, 5)
	if err != nil {
		t.Fatalf("BestProducts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Name != "Tea" {
		t.Errorf("best seller = %q, want Tea", rows[0].Name)
	}
	if rows[0].TotalSold != 8 {
		t.Errorf("tea sold = %d, want 8", rows[0].TotalSold)
	}
	if want := decimal.RequireFromString("80.00"); !rows[0].TotalRevenue.Equal(want) {
		t.Errorf("tea revenue = %s, want %s", rows[0].TotalRevenue, want)
	}
}

func TestDailySales(t *testing.T) {
	db := newTestDB(t)
	h := NewReportsHandler(db, nil, zap.NewNop())
	ctx := context.Background()

	tea := seedProduct(t, db, "Tea")

	seedDeliveredOrder(t, db, 1,
		models.OrderItem{ProductID: tea.ID, Quantity: 1, Price: decimal.RequireFromString("10.00")},
	)

	old := seedDeliveredOrder(t, db, 1,
		models.OrderItem{ProductID: tea.ID, Quantity: 1, Price: decimal.RequireFromString("10.00")},
	)
	stale := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.Order{}).Where("id = ?", old.ID).Update("created_at", stale).Error; err != nil {
		t.Fatalf("age order: %v", err)
	}

	rows, err := h.DailySales(ctx)
	if err != nil {
		t.Fatalf("DailySales: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (month-old order excluded)", len(rows))
	}
	if rows[0].Date != time.Now().Format("2006-01-02") {
		t.Errorf("date = %q, want today", rows[0].Date)
	}
	if rows[0].OrdersCount != 1 {
		t.Errorf("orders = %d, want 1", rows[0].OrdersCount)
	}
	if want := decimal.RequireFromString("10.00"); !rows[0].Revenue.Equal(want) {
		t.Errorf("revenue = %s, want %s", rows[0].Revenue, want)
	}
}
