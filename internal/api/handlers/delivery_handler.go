package handlers

import (
	"net/http"

	"site-procurement-api-server/internal/api/middleware"
	"site-procurement-api-server/internal/engine"

	"github.com/gin-gonic/gin"
)

type DeliveryHandler struct {
	Engine *engine.Engine
}

type RecordDeliveryPayload struct {
	Items []engine.DeliveryLineInput `json:"items" binding:"required,dive"`
	Notes string                     `json:"notes"`
}

// RecordDelivery applies a multi-line delivery against a PO. Under the
// default policy fitting lines are applied and failures are reported
// together in the response.
func (h *DeliveryHandler) RecordDelivery(c *gin.Context) {
	var payload RecordDeliveryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Engine.RecordDelivery(c.Request.Context(), middleware.Actor(c), c.Param("id"), payload.Items, payload.Notes)
	if err != nil {
		// Nothing was applied; still surface the per-line failures when the
		// engine produced them.
		if result != nil && len(result.Failures) > 0 {
			var engineErr *engine.Error
			status := http.StatusUnprocessableEntity
			if e, ok := err.(*engine.Error); ok {
				engineErr = e
				status = statusForKind(e.Kind)
			}
			c.JSON(status, gin.H{"error": err.Error(), "details": engineErr, "failures": result.Failures})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListDeliveries returns the deliveries recorded against a PO, oldest first.
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	deliveries, err := h.Engine.ListDeliveries(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deliveries)
}
