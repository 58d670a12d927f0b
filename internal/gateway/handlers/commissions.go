package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	commissions "loomstore/internal/services/commissions/handler"
)

type CommissionGateway struct {
	svc *commissions.CommissionHandler
}

func NewCommissionGateway(svc *commissions.CommissionHandler) *CommissionGateway {
	return &CommissionGateway{svc: svc}
}

type calculateRequest struct {
	Year  int `json:"year" binding:"required"`
	Month int `json:"month" binding:"required"`
}

func (g *CommissionGateway) Calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	result, err := g.svc.Calculate(c.Request.Context(), req.Year, req.Month)
	if err != nil {
		if errors.Is(err, commissions.ErrInvalidPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid year or month"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (g *CommissionGateway) Summary(c *gin.Context) {
	summary, err := g.svc.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (g *CommissionGateway) ListEmployeeCommissions(c *gin.Context) {
	var filter commissions.CommissionFilter
	if v := c.Query("employee_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			eid := uint(id)
			filter.EmployeeID = &eid
		}
	}
	if v := c.Query("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			filter.Year = &y
		}
	}
	if v := c.Query("month"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			filter.Month = &m
		}
	}

	rows, err := g.svc.ListEmployeeCommissions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": rows})
}

type rateRequest struct {
	Name           string           `json:"name" binding:"required"`
	MinSales       decimal.Decimal  `json:"min_sales"`
	MaxSales       *decimal.Decimal `json:"max_sales"`
	CommissionRate decimal.Decimal  `json:"commission_rate"`
}

func (g *CommissionGateway) CreateRate(c *gin.Context) {
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	rate, err := g.svc.CreateRate(c.Request.Context(), commissions.RateInput{
		Name:           req.Name,
		MinSales:       req.MinSales,
		MaxSales:       req.MaxSales,
		CommissionRate: req.CommissionRate,
	})
	if err != nil {
		switch {
		case errors.Is(err, commissions.ErrMissingRateField), errors.Is(err, commissions.ErrInvalidRate):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, rate)
}

type rateUpdateRequest struct {
	Name           *string          `json:"name"`
	MinSales       *decimal.Decimal `json:"min_sales"`
	MaxSales       *decimal.Decimal `json:"max_sales"`
	ClearMaxSales  bool             `json:"clear_max_sales"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
	IsActive       *bool            `json:"is_active"`
}

func (g *CommissionGateway) UpdateRate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid rate id"})
		return
	}

	var req rateUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	rate, err := g.svc.UpdateRate(c.Request.Context(), uint(id), commissions.RateUpdate{
		Name:           req.Name,
		MinSales:       req.MinSales,
		MaxSales:       req.MaxSales,
		ClearMaxSales:  req.ClearMaxSales,
		CommissionRate: req.CommissionRate,
		IsActive:       req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, commissions.ErrInvalidRate):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, commissions.ErrRateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Commission rate not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, rate)
}

func (g *CommissionGateway) DeleteRate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid rate id"})
		return
	}

	if err := g.svc.DeleteRate(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, commissions.ErrRateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Commission rate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Commission rate deactivated"})
}

func (g *CommissionGateway) ListRates(c *gin.Context) {
	rates, err := g.svc.ListRates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates})
}
