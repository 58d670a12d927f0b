package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	reports "loomstore/internal/services/reports/handler"
)

type ReportsGateway struct {
	svc *reports.ReportsHandler
}

func NewReportsGateway(svc *reports.ReportsHandler) *ReportsGateway {
	return &ReportsGateway{svc: svc}
}

func (g *ReportsGateway) StoreSummary(c *gin.Context) {
	summary, err := g.svc.StoreSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (g *ReportsGateway) BestProducts(c *gin.Context) {
	rows, err := g.svc.BestProducts(c.Request.Context(), queryInt(c, "limit", 5))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": rows})
}

func (g *ReportsGateway) DailySales(c *gin.Context) {
	rows, err := g.svc.DailySales(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_sales": rows})
}
