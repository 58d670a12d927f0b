package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"loomstore/internal/gateway/middleware"
	orders "loomstore/internal/services/orders/handler"
)

type OrderGateway struct {
	svc *orders.OrderHandler
}

func NewOrderGateway(svc *orders.OrderHandler) *OrderGateway {
	return &OrderGateway{svc: svc}
}

type orderLineRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

type createOrderRequest struct {
	AddressID uint               `json:"address_id" binding:"required"`
	Items     []orderLineRequest `json:"items" binding:"required,min=1,dive"`
	Notes     *string            `json:"notes"`
}

func (g *OrderGateway) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	in := orders.CreateOnlineOrderInput{
		AddressID: req.AddressID,
		Notes:     req.Notes,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, orders.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	orderID, err := g.svc.CreateOnlineOrder(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		if errors.Is(err, orders.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Order created successfully",
		"order_id": orderID,
	})
}

type posOrderRequest struct {
	Items         []orderLineRequest `json:"items" binding:"required,min=1,dive"`
	CustomerID    *uint              `json:"customer_id"`
	CustomerPhone string             `json:"customer_phone"`
}

func (g *OrderGateway) CreatePOS(c *gin.Context) {
	var req posOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	in := orders.CreatePOSOrderInput{
		CustomerID:    req.CustomerID,
		CustomerPhone: req.CustomerPhone,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, orders.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	result, err := g.svc.CreatePOSOrder(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		var stockErr *orders.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"message":    stockErr.Error(),
				"product_id": stockErr.ProductID,
				"available":  stockErr.Available,
				"requested":  stockErr.Requested,
			})
		case errors.Is(err, orders.ErrProductNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "POS order completed",
		"order_id":    result.OrderID,
		"total_price": result.TotalPrice,
		"customer":    result.Customer,
	})
}

func (g *OrderGateway) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order id"})
		return
	}

	detail, err := g.svc.GetOrder(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (g *OrderGateway) List(c *gin.Context) {
	filter := orders.OrderFilter{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 10),
	}
	if v := c.Query("user_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			uid := uint(id)
			filter.UserID = &uid
		}
	}
	if v := c.Query("employee_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			eid := uint(id)
			filter.EmployeeID = &eid
		}
	}
	if from, to := c.Query("date_from"), c.Query("date_to"); from != "" && to != "" {
		f, errF := time.Parse("2006-01-02", from)
		t, errT := time.Parse("2006-01-02", to)
		if errF == nil && errT == nil {
			t = t.AddDate(0, 0, 1)
			filter.DateFrom = &f
			filter.DateTo = &t
		}
	}

	list, total, err := g.svc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

func (g *OrderGateway) MyOrders(c *gin.Context) {
	userID := middleware.UserID(c)
	filter := orders.OrderFilter{
		UserID: &userID,
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 10),
	}

	list, total, err := g.svc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *OrderGateway) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order id"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	err = g.svc.UpdateStatus(c.Request.Context(), uint(id), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status"})
		case errors.Is(err, orders.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

func (g *OrderGateway) Cancel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order id"})
		return
	}

	err = g.svc.Cancel(c.Request.Context(), middleware.UserID(c), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
		case errors.Is(err, orders.ErrOrderNotCancellable):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Order can no longer be cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
}

func (g *OrderGateway) EmployeeStats(c *gin.Context) {
	stats, err := g.svc.EmployeeSalesStats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
