package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loomstore/internal/database/models"
)

const (
	storeSummaryCacheKey = "reports:store-summary"
	storeSummaryCacheTTL = 5 * time.Minute
)

type ReportsHandler struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

func NewReportsHandler(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{
		db:    db,
		redis: redisClient,
		log:   logger,
	}
}

type StoreSummary struct {
	TotalOrders    int64           `json:"total_orders"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AvgOrderValue  decimal.Decimal `json:"avg_order_value"`
	TotalCustomers int64           `json:"total_customers"`
}

// StoreSummary aggregates over delivered orders only.
func (h *ReportsHandler) StoreSummary(ctx context.Context) (*StoreSummary, error) {
	if h.redis != nil {
		if val, err := h.redis.Get(ctx, storeSummaryCacheKey).Result(); err == nil {
			var cached StoreSummary
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			h.log.Warn("store summary cache read failed", zap.Error(err))
		}
	}

	var summary StoreSummary
	err := h.db.WithContext(ctx).
		Table("orders o").
		Select("COALESCE(COUNT(DISTINCT o.id), 0) as total_orders, "+
			"COALESCE(SUM(oi.quantity * oi.price), 0) as total_revenue, "+
			"COALESCE(AVG(oi.quantity * oi.price), 0) as avg_order_value, "+
			"COALESCE(COUNT(DISTINCT o.user_id), 0) as total_customers").
		Joins("JOIN order_items oi ON o.id = oi.order_id").
		Where("o.status = ?", models.StatusDelivered).
		Scan(&summary).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate store summary: %w", err)
	}

	if h.redis != nil {
		if payload, err := json.Marshal(&summary); err == nil {
			if err := h.redis.Set(ctx, storeSummaryCacheKey, payload, storeSummaryCacheTTL).Err(); err != nil {
				h.log.Warn("store summary cache write failed", zap.Error(err))
			}
		}
	}

	return &summary, nil
}

type BestProduct struct {
	Name         string          `json:"name"`
	TotalSold    int64           `json:"total_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

func (h *ReportsHandler) BestProducts(ctx context.Context, limit int) ([]BestProduct, error) {
	if limit < 1 {
		limit = 5
	}

	var rows []BestProduct
	err := h.db.WithContext(ctx).
		Table("order_items oi").
		Select("p.name, SUM(oi.quantity) as total_sold, SUM(oi.quantity * oi.price) as total_revenue").
		Joins("JOIN products p ON oi.product_id = p.id").
		Joins("JOIN orders o ON oi.order_id = o.id").
		Where("o.status = ?", models.StatusDelivered).
		Group("p.id, p.name").
		Order("total_sold desc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list best products: %w", err)
	}
	return rows, nil
}

type DailySales struct {
	Date        string          `json:"date"`
	OrdersCount int64           `json:"orders_count"`
	Revenue     decimal.Decimal `json:"daily_revenue"`
}

// DailySales buckets the trailing week's delivered orders by calendar day.
// Bucketing happens here rather than in SQL to stay portable across drivers.
func (h *ReportsHandler) DailySales(ctx context.Context) ([]DailySales, error) {
	since := time.Now().AddDate(0, 0, -7)

	var orders []models.Order
	err := h.db.WithContext(ctx).
		Select("created_at", "total_price").
		Where("status = ? AND created_at >= ?", models.StatusDelivered, since).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("load recent delivered orders: %w", err)
	}

	buckets := make(map[string]*DailySales)
	for _, o := range orders {
		key := o.CreatedAt.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &DailySales{Date: key, Revenue: decimal.Zero}
			buckets[key] = b
		}
		b.OrdersCount++
		b.Revenue = b.Revenue.Add(o.TotalPrice)
	}

	out := make([]DailySales, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}
