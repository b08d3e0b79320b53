// Package trips implements the trip and membership HTTP handlers. All routes
// require an authenticated user; the engine decides what that user may do.
package trips

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chravel/chravel-backend/internal/api/httperr"
	"github.com/chravel/chravel-backend/internal/authz"
	"github.com/chravel/chravel-backend/internal/middleware"
)

// TripHandlers serves trip lifecycle and membership routes.
type TripHandlers struct {
	engine *authz.Engine
}

// NewTripHandlers creates handlers backed by the authorization engine.
func NewTripHandlers(engine *authz.Engine) *TripHandlers {
	return &TripHandlers{engine: engine}
}

type createTripRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /api/v1/trips. The caller becomes the trip creator and
// receives the full admin capability set in the same transaction.
func (h *TripHandlers) Create(c *gin.Context) {
	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	trip, err := h.engine.CreateTrip(c.Request.Context(), req.Name, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, trip)
}

// Get handles GET /api/v1/trips/:trip_id.
func (h *TripHandlers) Get(c *gin.Context) {
	trip, err := h.engine.GetTrip(c.Request.Context(), c.Param("trip_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// Delete handles DELETE /api/v1/trips/:trip_id. Creator only; everything
// under the trip cascades away.
func (h *TripHandlers) Delete(c *gin.Context) {
	err := h.engine.DeleteTrip(c.Request.Context(), c.Param("trip_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddMember handles POST /api/v1/trips/:trip_id/members.
func (h *TripHandlers) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	err := h.engine.AddMember(c.Request.Context(), c.Param("trip_id"), req.UserID, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/trips/:trip_id/members/:user_id. The
// member's role assignments and derived channel rows go with the membership.
func (h *TripHandlers) RemoveMember(c *gin.Context) {
	err := h.engine.RemoveMember(c.Request.Context(), c.Param("trip_id"), c.Param("user_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /api/v1/trips/:trip_id/members.
func (h *TripHandlers) ListMembers(c *gin.Context) {
	members, err := h.engine.ListMembers(c.Request.Context(), c.Param("trip_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}
