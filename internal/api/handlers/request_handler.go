package handlers

import (
	"net/http"

	"site-procurement-api-server/internal/api/middleware"
	"site-procurement-api-server/internal/engine"
	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	Engine *engine.Engine
}

// CreateRequest creates a new draft procurement request with its BOQ items.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var payload engine.CreateRequestInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Engine.CreateRequest(c.Request.Context(), middleware.Actor(c), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// AddItem appends one item to a draft request.
func (h *RequestHandler) AddItem(c *gin.Context) {
	var payload engine.NewItemInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Engine.AddItem(c.Request.Context(), middleware.Actor(c), c.Param("id"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// UpdateItem edits one item on a draft request.
func (h *RequestHandler) UpdateItem(c *gin.Context) {
	var payload engine.NewItemInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Engine.UpdateItem(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("itemID"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Submit sends a draft request into review.
func (h *RequestHandler) Submit(c *gin.Context) {
	req, err := h.Engine.Submit(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type DecideItemPayload struct {
	Decision engine.Decision `json:"decision" binding:"required"` // APPROVE or REJECT
	Comment  string          `json:"comment"`
}

// DecideItem records a reviewer's verdict on one pending item.
func (h *RequestHandler) DecideItem(c *gin.Context) {
	var payload DecideItemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Engine.DecideItem(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("itemID"), payload.Decision, payload.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// ResubmitItem puts an edited rejected item back into review.
func (h *RequestHandler) ResubmitItem(c *gin.Context) {
	var payload engine.ResubmitItemInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Engine.ResubmitItem(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("itemID"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GetRequest returns one request with its items.
func (h *RequestHandler) GetRequest(c *gin.Context) {
	req, err := h.Engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// ListRequests returns requests filtered by project, status or creator.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	filter := store.RequestFilter{
		ProjectID: c.Query("projectID"),
		Status:    models.RequestStatus(c.Query("status")),
		CreatedBy: c.Query("createdBy"),
	}

	requests, err := h.Engine.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GetRequestAudit returns the full ordered audit trail for a request.
func (h *RequestHandler) GetRequestAudit(c *gin.Context) {
	// Make sure the subject exists so a typo reads as 404, not empty history.
	if _, err := h.Engine.GetRequest(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.Engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
