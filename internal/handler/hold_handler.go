package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/service"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/middleware"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/response"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HoldHandler handles hold and purchase HTTP requests
type HoldHandler struct {
	inventoryService service.InventoryService
}

// NewHoldHandler creates a new hold handler
func NewHoldHandler(inventoryService service.InventoryService) *HoldHandler {
	return &HoldHandler{inventoryService: inventoryService}
}

// CreateHold handles POST /holds
// A partial hold is still 201; resolved_quantity and conflict tell the client what was reserved
func (h *HoldHandler) CreateHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.hold.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}
	if req.UserID == "" {
		if userID, ok := middleware.GetUserID(c); ok {
			req.UserID = userID
		}
	}

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("ticket_type_id", req.TicketTypeID),
		attribute.Int("quantity", req.Quantity),
	)

	result, err := h.inventoryService.CreateHold(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("hold_id", result.Hold.ID),
		attribute.Int("resolved_quantity", result.ResolvedQuantity),
	)
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// GetHold handles GET /holds/:id
func (h *HoldHandler) GetHold(c *gin.Context) {
	hold, err := h.inventoryService.GetHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, hold)
}

// ReleaseHold handles DELETE /holds/:id
func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.hold.release")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	holdID := c.Param("id")
	span.SetAttributes(attribute.String("hold_id", holdID))

	// Reason is optional, so an empty body is fine
	var req dto.ReleaseHoldRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			span.SetStatus(codes.Error, "invalid request")
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.inventoryService.ReleaseHold(ctx, holdID, req.Reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ProcessPurchase handles POST /purchases
func (h *HoldHandler) ProcessPurchase(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.purchase.process")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}
	if req.UserID == "" {
		if userID, ok := middleware.GetUserID(c); ok {
			req.UserID = userID
		}
	}

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("ticket_type_id", req.TicketTypeID),
		attribute.String("order_id", req.OrderID),
		attribute.Int("quantity", req.Quantity),
	)

	result, err := h.inventoryService.ProcessPurchase(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("converted_hold_id", result.ConvertedHoldID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}
