package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/service"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/response"
	"go.uber.org/zap"
)

const defaultHeartbeat = 15 * time.Second

// StreamHandler serves inventory events as Server-Sent Events
type StreamHandler struct {
	bus       *service.EventBus
	heartbeat time.Duration
	log       *logger.Logger
}

// NewStreamHandler creates a stream handler; heartbeat <= 0 uses 15s
func NewStreamHandler(bus *service.EventBus, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{
		bus:       bus,
		heartbeat: heartbeat,
		log:       logger.Get().Named("sse"),
	}
}

// Stream handles GET /stream?event_id=
// Each connection is its own bus subscriber and is removed when the client goes away.
func (h *StreamHandler) Stream(c *gin.Context) {
	eventID := c.Query("event_id")
	name := "sse-" + uuid.New().String()

	events := make(chan *domain.InventoryEvent, 64)
	done := make(chan struct{})

	err := h.bus.Subscribe(name, func(ctx context.Context, ev *domain.InventoryEvent) error {
		if eventID != "" && ev.EventID != eventID {
			return nil
		}
		select {
		case events <- ev:
			return nil
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		}
	})
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", err.Error(), nil)
		return
	}
	defer func() {
		close(done)
		h.bus.Unsubscribe(name)
	}()

	h.log.Debug("Stream opened", zap.String("subscriber", name), zap.String("event_id", eventID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			h.log.Debug("Stream closed", zap.String("subscriber", name))
			return
		case ev := <-events:
			c.SSEvent(string(ev.Type), ev)
			c.Writer.Flush()
		case now := <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"time": now.UTC()})
			c.Writer.Flush()
		}
	}
}
