package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	catalog "loomstore/internal/services/catalog/handler"
)

type CatalogGateway struct {
	svc *catalog.CatalogHandler
}

func NewCatalogGateway(svc *catalog.CatalogHandler) *CatalogGateway {
	return &CatalogGateway{svc: svc}
}

func (g *CatalogGateway) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product id"})
		return
	}

	product, err := g.svc.GetProduct(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, product)
}

type setStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

func (g *CatalogGateway) SetStock(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product id"})
		return
	}

	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Stock must be a non-negative number"})
		return
	}

	if err := g.svc.SetStock(c.Request.Context(), uint(id), *req.Stock); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stock updated"})
}

func (g *CatalogGateway) LowStock(c *gin.Context) {
	products, err := g.svc.LowStock(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}
