package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
)

// HealthChecker is implemented by infrastructure clients (redis, kafka, rabbitmq)
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	components map[string]HealthChecker
	stats      func() *dto.EngineStats
}

// NewHealthHandler creates a new HealthHandler; nil components are skipped
func NewHealthHandler(components map[string]HealthChecker, stats func() *dto.EngineStats) *HealthHandler {
	filtered := make(map[string]HealthChecker, len(components))
	for name, c := range components {
		if c != nil {
			filtered[name] = c
		}
	}
	return &HealthHandler{components: filtered, stats: stats}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health returns a simple health check (liveness probe)
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready checks every configured component (readiness probe).
// The engine itself is in-process, so with no components configured the service is ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)

	components := map[string]string{"engine": "healthy"}
	allHealthy := true
	for _, name := range names {
		if err := h.components[name].HealthCheck(ctx); err != nil {
			components[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			components[name] = "healthy"
		}
	}

	resp := ReadyResponse{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	if allHealthy {
		resp.Status = "ready"
		c.JSON(http.StatusOK, resp)
	} else {
		resp.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, resp)
	}
}

// Stats returns lock, subscriber and worker statistics
func (h *HealthHandler) Stats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusOK, &dto.EngineStats{})
		return
	}
	c.JSON(http.StatusOK, h.stats())
}
