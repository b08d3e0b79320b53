// Package httperr maps authorization engine errors onto HTTP responses so
// every handler package reports the error taxonomy the same way.
package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chravel/chravel-backend/internal/authz"
)

// Respond writes the JSON error response for an engine error. Callers must
// return immediately afterwards.
//
// The taxonomy maps onto statuses as:
//
//	ErrForbidden              → 403
//	ErrNotAMember             → 422
//	ErrCrossTripRole          → 422
//	ErrAlreadyPrimaryConflict → 409
//	ErrNotFound               → 404
//	anything else             → 500 with a generic message
func Respond(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authz.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, authz.ErrNotAMember):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, authz.ErrCrossTripRole):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, authz.ErrAlreadyPrimaryConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, authz.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
