package handler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"loomstore/internal/database/models"
)

var ErrProductNotFound = errors.New("product not found")

type CatalogHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCatalogHandler(db *gorm.DB, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		db:  db,
		log: logger,
	}
}

func (h *CatalogHandler) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := h.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up product: %w", err)
	}
	return &product, nil
}

// SetStock writes an absolute stock count, used by staff to correct
// inventory after a recount.
func (h *CatalogHandler) SetStock(ctx context.Context, id uint, stock int) error {
	res := h.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", stock)
	if res.Error != nil {
		return fmt.Errorf("update stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}

	h.log.Info("stock updated", zap.Uint("product_id", id), zap.Int("stock", stock))
	return nil
}

// LowStock lists products at or below their own low-stock threshold, most
// depleted first.
func (h *CatalogHandler) LowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := h.db.WithContext(ctx).
		Where("stock <= low_stock_threshold").
		Order("stock asc").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list low-stock products: %w", err)
	}
	return products, nil
}
