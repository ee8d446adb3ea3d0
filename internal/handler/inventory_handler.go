package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/service"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/middleware"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/response"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// InventoryHandler handles inventory, audit and alert HTTP requests
type InventoryHandler struct {
	inventoryService service.InventoryService
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// Provision handles POST /inventory (admin)
func (h *InventoryHandler) Provision(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.inventory.provision")
	defer span.End()

	var req dto.ProvisionInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.RecordError(span, err)
		response.BadRequest(c, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("ticket_type_id", req.TicketTypeID),
		attribute.Int("total_quantity", req.TotalQuantity),
	)

	record, err := h.inventoryService.ProvisionInventory(ctx, req.ToDomain())
	if err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}
	response.Created(c, record)
}

// GetStatus handles GET /inventory/events/:event_id
func (h *InventoryHandler) GetStatus(c *gin.Context) {
	status, err := h.inventoryService.GetInventoryStatus(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}

// GetAvailability handles GET /inventory/events/:event_id/ticket-types/:ticket_type_id/availability
func (h *InventoryHandler) GetAvailability(c *gin.Context) {
	availability, err := h.inventoryService.GetTicketAvailabilityStatus(c.Request.Context(), c.Param("event_id"), c.Param("ticket_type_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, availability)
}

// GetTransactions handles GET /transactions
func (h *InventoryHandler) GetTransactions(c *gin.Context) {
	var query dto.TransactionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	txs, err := h.inventoryService.GetTransactions(c.Request.Context(), &query)
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, txs, len(txs))
}

// GetAlerts handles GET /alerts
func (h *InventoryHandler) GetAlerts(c *gin.Context) {
	var query dto.AlertQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	alerts, err := h.inventoryService.GetAlerts(c.Request.Context(), query.EventID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, alerts, len(alerts))
}

// AcknowledgeAlert handles POST /alerts/:id/acknowledge (admin)
func (h *InventoryHandler) AcknowledgeAlert(c *gin.Context) {
	operator, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "User ID not found in token")
		return
	}

	alert, err := h.inventoryService.AcknowledgeAlert(c.Request.Context(), c.Param("id"), operator)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, alert)
}
