package handlers

import (
	"errors"
	"net/http"

	"site-procurement-api-server/internal/engine"

	"github.com/gin-gonic/gin"
)

func statusForKind(kind engine.Kind) int {
	switch kind {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindUnauthorized:
		return http.StatusForbidden
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindInvalidTransition, engine.KindItemAlreadyDecided, engine.KindConflict:
		return http.StatusConflict
	case engine.KindOverOrder, engine.KindOverDelivery:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps engine error kinds to HTTP statuses and keeps the
// entity/status/action detail in the body so clients can decide whether to
// retry.
func respondError(c *gin.Context, err error) {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		c.JSON(statusForKind(engineErr.Kind), gin.H{"error": engineErr.Detail, "details": engineErr})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
