package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/middleware"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/response"
)

// Routes groups the handlers and the middleware placed in front of them
type Routes struct {
	Health    *HealthHandler
	Inventory *InventoryHandler
	Holds     *HoldHandler
	Stream    *StreamHandler

	// Auth validates bearer tokens on admin routes
	Auth gin.HandlerFunc
	// Idempotency wraps hold and purchase writes; optional
	Idempotency gin.HandlerFunc
}

// Register mounts every route on the router
func (r *Routes) Register(router gin.IRouter) {
	router.GET("/health", r.Health.Health)
	router.GET("/ready", r.Health.Ready)
	router.GET("/stats", r.Health.Stats)

	writes := []gin.HandlerFunc{}
	if r.Idempotency != nil {
		writes = append(writes, r.Idempotency)
	}
	auth := r.Auth
	if auth == nil {
		auth = denyAll
	}
	admin := []gin.HandlerFunc{auth, middleware.RequireRole(middleware.RoleAdmin)}

	v1 := router.Group("/api/v1")
	{
		inventory := v1.Group("/inventory")
		inventory.POST("", append(admin, r.Inventory.Provision)...)
		inventory.GET("/events/:event_id", r.Inventory.GetStatus)
		inventory.GET("/events/:event_id/ticket-types/:ticket_type_id/availability", r.Inventory.GetAvailability)

		holds := v1.Group("/holds")
		holds.POST("", append(writes, r.Holds.CreateHold)...)
		holds.GET("/:id", r.Holds.GetHold)
		holds.DELETE("/:id", append(writes, r.Holds.ReleaseHold)...)

		v1.POST("/purchases", append(writes, r.Holds.ProcessPurchase)...)

		v1.GET("/transactions", r.Inventory.GetTransactions)
		v1.GET("/alerts", r.Inventory.GetAlerts)
		v1.POST("/alerts/:id/acknowledge", append(admin, r.Inventory.AcknowledgeAlert)...)

		if r.Stream != nil {
			v1.GET("/stream", r.Stream.Stream)
		}
	}
}

// denyAll closes admin routes when no authenticator is configured
func denyAll(c *gin.Context) {
	response.Unauthorized(c, "authentication not configured")
	c.Abort()
}
