package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(router *gin.Engine, handler *Handler, allowedOrigins []string) {
	registerValidators()
	router.Use(corsMiddleware(allowedOrigins))

	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		api.POST("/properties", handler.CreateProperty)
		api.GET("/properties", handler.ListProperties)
		api.GET("/properties/:id", handler.GetProperty)
		api.DELETE("/properties/:id", handler.DeleteProperty)
		api.GET("/properties/:id/units/:label", handler.GetUnit)
		api.PATCH("/units/:id", handler.UpdateUnit)

		api.POST("/tenants", handler.CreateTenant)
		api.GET("/tenants", handler.ListTenants)
		api.GET("/tenants/:id", handler.GetTenant)
		api.PATCH("/tenants/:id", handler.UpdateTenant)
		api.DELETE("/tenants/:id", handler.ArchiveTenant)
		api.GET("/tenants/:id/payments", handler.GetTenantPayments)

		api.POST("/payments/record", handler.RecordPayment)
		api.POST("/payments/mpesa/callback", handler.MpesaCallback)
		api.GET("/payments", handler.ListPayments)
		api.POST("/rent/accrue", handler.AccrueRent)

		api.GET("/notifications", handler.ListNotifications)
		api.GET("/notifications/ws", handler.NotificationStream)

		api.GET("/analytics/summary", handler.GetSummary)
		api.GET("/analytics/payments-trend", handler.GetPaymentsTrend)
		api.GET("/analytics/arrears", handler.ListArrears)
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

// RequestLogger logs each request through logrus.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("Request failed")
			return
		}
		entry.Debug("Request handled")
	}
}
