package handler

import (
	"github.com/gin-gonic/gin"

	"quickcart/internal/config"
	"quickcart/internal/middleware"
	"quickcart/internal/monitor"
	"quickcart/internal/service/auth"
	"quickcart/internal/service/idempotency"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth    *AuthHandler
	Order   *OrderHandler
	Webhook *WebhookHandler
}

// NewRouter assembles the gin engine with the full middleware chain.
func NewRouter(cfg *config.Config, h Handlers, authService auth.Service, idem idempotency.Service, metrics *monitor.Collector) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middleware.Auth(authService), h.Auth.Logout)
	}

	orders := v1.Group("/orders", middleware.Auth(authService))
	{
		orders.POST("", middleware.Idempotency(idem), h.Order.Checkout)
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
	}

	admin := v1.Group("/admin/orders", middleware.Auth(authService), middleware.RequireRole("admin"))
	{
		admin.PATCH("/:id/status", h.Order.UpdateStatus)
		admin.POST("/:id/partial-fulfillment", h.Order.PartialFulfillment)
	}

	// Gateways authenticate with signatures, not bearer tokens.
	v1.POST("/webhooks/payments/:provider", h.Webhook.Receive)

	return r
}
