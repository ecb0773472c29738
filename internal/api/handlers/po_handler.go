package handlers

import (
	"net/http"

	"site-procurement-api-server/internal/api/middleware"
	"site-procurement-api-server/internal/engine"
	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type POHandler struct {
	Engine *engine.Engine
}

type CreatePurchaseOrderPayload struct {
	ProjectID string               `json:"projectID" binding:"required"`
	Vendor    string               `json:"vendor"`
	Items     []engine.POSelection `json:"items" binding:"required,dive"`
}

// CreatePurchaseOrder assembles approved, unclaimed items into a new PO.
func (h *POHandler) CreatePurchaseOrder(c *gin.Context) {
	var payload CreatePurchaseOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	po, err := h.Engine.CreatePurchaseOrder(c.Request.Context(), middleware.Actor(c), payload.ProjectID, payload.Vendor, payload.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

// GetClaimableItems returns the PO assembly picklist for a project.
func (h *POHandler) GetClaimableItems(c *gin.Context) {
	items, err := h.Engine.ClaimableItems(c.Request.Context(), middleware.Actor(c), c.Param("projectID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetPurchaseOrder returns one PO with its lines and delivery progress.
func (h *POHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.Engine.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

// ListPurchaseOrders returns POs filtered by project or status.
func (h *POHandler) ListPurchaseOrders(c *gin.Context) {
	filter := store.POFilter{
		ProjectID: c.Query("projectID"),
		Status:    models.POStatus(c.Query("status")),
	}

	orders, err := h.Engine.ListPurchaseOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
