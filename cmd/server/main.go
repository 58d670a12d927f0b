package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loomstore/config"
	"loomstore/internal/database"
	"loomstore/internal/gateway/handlers"
	"loomstore/internal/gateway/middleware"
	"loomstore/internal/utils"

	catalogsvc "loomstore/internal/services/catalog/handler"
	commissionsvc "loomstore/internal/services/commissions/handler"
	ordersvc "loomstore/internal/services/orders/handler"
	reportsvc "loomstore/internal/services/reports/handler"
)

func main() {
	cfg := config.LoadConfig()
	utils.JwtSecret = []byte(cfg.Auth.JWTSecret)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient := config.NewRedisClient(cfg.Redis)

	orderGateway := handlers.NewOrderGateway(ordersvc.NewOrderHandler(db, redisClient, logger))
	commissionGateway := handlers.NewCommissionGateway(commissionsvc.NewCommissionHandler(db, redisClient, logger))
	catalogGateway := handlers.NewCatalogGateway(catalogsvc.NewCatalogHandler(db, logger))
	reportsGateway := handlers.NewReportsGateway(reportsvc.NewReportsHandler(db, redisClient, logger))

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		orders := protected.Group("/orders")
		{
			orders.POST("", orderGateway.Create)
			orders.GET("/my-orders", orderGateway.MyOrders)
			orders.POST("/:id/cancel", orderGateway.Cancel)

			orders.GET("", middleware.RequireEmployeeOrAdmin(), orderGateway.List)
			orders.GET("/:id", middleware.RequireEmployeeOrAdmin(), orderGateway.Get)
			orders.PUT("/:id/status", middleware.RequireEmployeeOrAdmin(), orderGateway.UpdateStatus)
			orders.POST("/pos", middleware.RequireEmployeeOrAdmin(), orderGateway.CreatePOS)
			orders.GET("/employee/stats", middleware.RequireEmployeeOrAdmin(), orderGateway.EmployeeStats)
		}

		commissions := protected.Group("/commissions")
		commissions.Use(middleware.RequireAdmin())
		{
			commissions.POST("/calculate", commissionGateway.Calculate)
			commissions.GET("/summary", commissionGateway.Summary)
			commissions.GET("/employee-commissions", commissionGateway.ListEmployeeCommissions)

			commissions.GET("/rates", commissionGateway.ListRates)
			commissions.POST("/rates", commissionGateway.CreateRate)
			commissions.PUT("/rates/:id", commissionGateway.UpdateRate)
			commissions.DELETE("/rates/:id", commissionGateway.DeleteRate)
		}

		products := protected.Group("/products")
		{
			products.GET("/:id", catalogGateway.Get)
			products.PUT("/:id/stock", middleware.RequireEmployeeOrAdmin(), catalogGateway.SetStock)
			products.GET("/low-stock", middleware.RequireEmployeeOrAdmin(), catalogGateway.LowStock)
		}

		reports := protected.Group("/reports")
		reports.Use(middleware.RequireAdmin())
		{
			reports.GET("/store-summary", reportsGateway.StoreSummary)
			reports.GET("/best-products", reportsGateway.BestProducts)
			reports.GET("/daily-sales", reportsGateway.DailySales)
		}
	}

	logger.Info("Server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Server exited", zap.Error(err))
	}
}
