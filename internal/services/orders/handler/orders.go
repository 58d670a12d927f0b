package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loomstore/internal/database/models"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

var validStatuses = map[string]bool{
	models.StatusPending:    true,
	models.StatusProcessing: true,
	models.StatusShipped:    true,
	models.StatusDelivered:  true,
	models.StatusCancelled:  true,
}

// lockForUpdate takes a row lock on dialects that support it. SQLite (used
// in tests) serializes writers on its own, so the clause is skipped there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

type OrderHandler struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

func NewOrderHandler(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:    db,
		redis: redisClient,
		log:   logger,
	}
}

type OrderLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CreateOnlineOrderInput struct {
	AddressID uint
	Items     []OrderLine
	Notes     *string
}

type CreatePOSOrderInput struct {
	Items         []OrderLine
	CustomerID    *uint
	CustomerPhone string
}

type POSOrderResult struct {
	OrderID    uint
	TotalPrice decimal.Decimal
	Customer   string
}

// CreateOnlineOrder prices the cart against current catalog prices, persists
// the order with its line items and decrements stock, all in one transaction.
// Lines referencing a product that does not exist are dropped without error;
// the POS path below is strict instead.
func (h *OrderHandler) CreateOnlineOrder(ctx context.Context, userID uint, in CreateOnlineOrderInput) (uint, error) {
	var address models.Address
	err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", in.AddressID, userID).
		First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidAddress
		}
		return 0, fmt.Errorf("look up address: %w", err)
	}

	type pricedLine struct {
		productID uint
		quantity  int
		unitPrice decimal.Decimal
	}

	var order models.Order
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total := decimal.Zero
		lines := make([]pricedLine, 0, len(in.Items))
		for _, item := range in.Items {
			var product models.Product
			err := lockForUpdate(tx).
				Where("id = ?", item.ProductID).
				First(&product).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Unknown products are skipped, not rejected.
				continue
			}
			if err != nil {
				return fmt.Errorf("look up product %d: %w", item.ProductID, err)
			}

			lines = append(lines, pricedLine{
				productID: product.ID,
				quantity:  item.Quantity,
				unitPrice: product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order = models.Order{
			UserID:     &userID,
			Status:     models.StatusPending,
			OrderType:  models.OrderTypeOnline,
			TotalPrice: total,
			AddressID:  &in.AddressID,
			Notes:      in.Notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.productID,
				Quantity:  line.quantity,
				Price:     line.unitPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			// Decremented without a floor check: online stock may go
			// negative, matching the catalog-facing behavior.
			err := tx.Model(&models.Product{}).
				Where("id = ?", line.productID).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.quantity)).Error
			if err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", line.productID, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	h.publishOrderEvent(ctx, EventOrderCreated, order)
	return order.ID, nil
}

// CreatePOSOrder validates every line before writing anything: a missing
// product or short stock fails the whole sale. The order is recorded as
// delivered immediately with the serving employee attached.
func (h *OrderHandler) CreatePOSOrder(ctx context.Context, employeeID uint, in CreatePOSOrderInput) (*POSOrderResult, error) {
	type pricedLine struct {
		productID uint
		quantity  int
		unitPrice decimal.Decimal
	}

	var order models.Order
	total := decimal.Zero

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := make([]pricedLine, 0, len(in.Items))
		for _, item := range in.Items {
			var product models.Product
			err := lockForUpdate(tx).
				Where("id = ?", item.ProductID).
				First(&product).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", item.ProductID, ErrProductNotFound)
			}
			if err != nil {
				return fmt.Errorf("look up product %d: %w", item.ProductID, err)
			}

			if product.Stock < item.Quantity {
				return &InsufficientStockError{
					ProductID: product.ID,
					Available: product.Stock,
					Requested: item.Quantity,
				}
			}

			lines = append(lines, pricedLine{
				productID: product.ID,
				quantity:  item.Quantity,
				unitPrice: product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		var notes *string
		if in.CustomerPhone != "" {
			phoneNote := "Customer Phone: " + in.CustomerPhone
			notes = &phoneNote
		}

		order = models.Order{
			UserID:     in.CustomerID,
			Status:     models.StatusDelivered,
			OrderType:  models.OrderTypePOS,
			TotalPrice: total,
			EmployeeID: &employeeID,
			Notes:      notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.productID,
				Quantity:  line.quantity,
				Price:     line.unitPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			err := tx.Model(&models.Product{}).
				Where("id = ?", line.productID).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.quantity)).Error
			if err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", line.productID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	customer := "Walk-in Customer"
	if in.CustomerID != nil {
		customer = "Registered Customer"
	}

	h.publishOrderEvent(ctx, EventOrderCreated, order)

	return &POSOrderResult{
		OrderID:    order.ID,
		TotalPrice: total,
		Customer:   customer,
	}, nil
}

// UpdateStatus moves an order to any status in the enum. Transition-graph
// restrictions only apply to the customer cancel path.
func (h *OrderHandler) UpdateStatus(ctx context.Context, orderID uint, status string) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}

	res := h.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}

	h.publishOrderEvent(ctx, EventOrderStatusChanged, models.Order{ID: orderID, Status: status})
	return nil
}

// Cancel is the customer-initiated path: it requires ownership and refuses
// orders that already shipped or were delivered.
func (h *OrderHandler) Cancel(ctx context.Context, userID, orderID uint) error {
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := lockForUpdate(tx).
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("look up order: %w", err)
		}

		if order.Status == models.StatusShipped || order.Status == models.StatusDelivered {
			return ErrOrderNotCancellable
		}

		return tx.Model(&order).Update("status", models.StatusCancelled).Error
	})
	if err != nil {
		return err
	}

	h.publishOrderEvent(ctx, EventOrderCancelled, models.Order{ID: orderID, Status: models.StatusCancelled})
	return nil
}

type OrderDetail struct {
	models.Order
	CustomerName  *string `json:"customer_name,omitempty"`
	CustomerEmail *string `json:"customer_email,omitempty"`
}

func (h *OrderHandler) GetOrder(ctx context.Context, orderID uint) (*OrderDetail, error) {
	var order models.Order
	err := h.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up order: %w", err)
	}

	detail := &OrderDetail{Order: order}
	if order.UserID != nil {
		var user models.User
		if err := h.db.WithContext(ctx).First(&user, *order.UserID).Error; err == nil {
			detail.CustomerName = &user.Name
			detail.CustomerEmail = &user.Email
		}
	}
	return detail, nil
}

type OrderFilter struct {
	UserID     *uint
	EmployeeID *uint
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
}

func (h *OrderHandler) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}

	query := h.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.EmployeeID != nil {
		query = query.Where("employee_id = ?", *f.EmployeeID)
	}
	if f.DateFrom != nil && f.DateTo != nil {
		query = query.Where("created_at BETWEEN ? AND ?", *f.DateFrom, *f.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	err := query.
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

type MonthlySales struct {
	Month       string          `json:"month"`
	OrdersCount int64           `json:"orders_count"`
	TotalSales  decimal.Decimal `json:"total_sales"`
}

type EmployeeStats struct {
	TotalOrders  int64           `json:"total_orders"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	TodayOrders  int64           `json:"today_orders"`
	TodaySales   decimal.Decimal `json:"today_sales"`
	MonthlyStats []MonthlySales  `json:"monthly_stats"`
}

// EmployeeSalesStats aggregates lifetime, today's and last-12-month sales for
// one employee's processed orders.
func (h *OrderHandler) EmployeeSalesStats(ctx context.Context, employeeID uint) (*EmployeeStats, error) {
	stats := &EmployeeStats{
		TotalSales: decimal.Zero,
		TodaySales: decimal.Zero,
	}

	base := h.db.WithContext(ctx).Model(&models.Order{}).Where("employee_id = ?", employeeID)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	var sum struct{ Total decimal.Decimal }
	err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total_price), 0) as total").
		Scan(&sum).Error
	if err != nil {
		return nil, fmt.Errorf("sum sales: %w", err)
	}
	stats.TotalSales = sum.Total

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today := base.Session(&gorm.Session{}).Where("created_at >= ?", startOfDay)
	if err := today.Session(&gorm.Session{}).Count(&stats.TodayOrders).Error; err != nil {
		return nil, fmt.Errorf("count today's orders: %w", err)
	}
	err = today.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total_price), 0) as total").
		Scan(&sum).Error
	if err != nil {
		return nil, fmt.Errorf("sum today's sales: %w", err)
	}
	stats.TodaySales = sum.Total

	// Month bucketing is done here rather than in SQL to stay portable
	// across drivers.
	var recent []models.Order
	err = h.db.WithContext(ctx).
		Select("created_at", "total_price").
		Where("employee_id = ? AND created_at >= ?", employeeID, now.AddDate(-1, 0, 0)).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("load recent orders: %w", err)
	}

	buckets := make(map[string]*MonthlySales)
	for _, o := range recent {
		key := o.CreatedAt.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &MonthlySales{Month: key, TotalSales: decimal.Zero}
			buckets[key] = b
		}
		b.OrdersCount++
		b.TotalSales = b.TotalSales.Add(o.TotalPrice)
	}
	for _, b := range buckets {
		stats.MonthlyStats = append(stats.MonthlyStats, *b)
	}
	sort.Slice(stats.MonthlyStats, func(i, j int) bool {
		return stats.MonthlyStats[i].Month > stats.MonthlyStats[j].Month
	})

	return stats, nil
}

type orderEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    uint      `json:"order_id"`
	Status     string    `json:"status"`
	OrderType  string    `json:"order_type,omitempty"`
	TotalPrice string    `json:"total_price,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// publishOrderEvent is best effort: a failed publish is logged and does not
// fail the request.
func (h *OrderHandler) publishOrderEvent(ctx context.Context, eventType string, order models.Order) {
	if h.redis == nil {
		return
	}

	event := orderEvent{
		EventType: eventType,
		OrderID:   order.ID,
		Status:    order.Status,
		OrderType: order.OrderType,
		Timestamp: time.Now(),
	}
	if !order.TotalPrice.IsZero() {
		event.TotalPrice = order.TotalPrice.StringFixed(2)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("marshal order event", zap.Error(err))
		return
	}

	channel := "orders:events:" + eventType
	if err := h.redis.Publish(ctx, channel, payload).Err(); err != nil {
		h.log.Warn("publish order event", zap.String("channel", channel), zap.Error(err))
	}
}
