package handler

import (
	"net/http"

	"agrimarket/internal/repository"
	"agrimarket/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由。/health 和 /metrics 不需要身份
func SetupRouter(h *Handler, users repository.UserStore, m *metrics.ServerMetrics, debug bool, logger *zap.Logger) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())
	r.Use(m.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api/v1", ActorMiddleware(users, logger))
	{
		orders := api.Group("/orders")
		{
			orders.POST("", h.PlaceOrder)
			orders.GET("/:id", h.GetOrder)
			orders.PUT("/:id/status", h.UpdateOrderStatus)
			orders.GET("/buyer/:buyerId", h.ListBuyerOrders)
			orders.GET("/seller/:sellerId", h.ListSellerOrders)
		}

		wallet := api.Group("/wallet")
		{
			wallet.POST("/transactions", h.ApplyTransaction)
			wallet.GET("/:userId", h.GetWallet)
			wallet.GET("/:userId/transactions", h.ListWalletTransactions)
		}
	}

	return r
}
