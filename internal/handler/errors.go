package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/response"
)

// retryAfterSeconds is advertised when an inventory key is busy
const retryAfterSeconds = "1"

// handleError maps engine errors to HTTP responses
func handleError(c *gin.Context, err error) {
	if resolution, ok := domain.ConflictFrom(err); ok {
		response.Error(c, http.StatusConflict, "INSUFFICIENT_INVENTORY", resolution.Message, resolution)
		return
	}

	switch {
	case errors.Is(err, domain.ErrTicketTypeNotFound):
		response.NotFound(c, "TICKET_TYPE_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrHoldNotFound):
		response.NotFound(c, "HOLD_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrAlertNotFound):
		response.NotFound(c, "ALERT_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInsufficientInventory):
		response.Error(c, http.StatusConflict, "INSUFFICIENT_INVENTORY", err.Error(), nil)
	case errors.Is(err, domain.ErrOperationInProgress):
		c.Header("Retry-After", retryAfterSeconds)
		response.Error(c, http.StatusLocked, "OPERATION_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyTerminal):
		response.Error(c, http.StatusConflict, "HOLD_ALREADY_TERMINAL", err.Error(), nil)
	case errors.Is(err, domain.ErrInventoryExists):
		response.Error(c, http.StatusConflict, "INVENTORY_EXISTS", err.Error(), nil)
	case errors.Is(err, domain.ErrQuantityMismatch):
		response.Error(c, http.StatusUnprocessableEntity, "QUANTITY_MISMATCH", err.Error(), nil)
	case domain.IsValidationError(err):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		response.InternalError(c)
	}
}
