// Package channels implements the channel HTTP handlers: channel lifecycle,
// role grants, explicit membership, and the access evaluation endpoint that
// messaging front-ends call before rendering or accepting a message.
package channels

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chravel/chravel-backend/internal/api/httperr"
	"github.com/chravel/chravel-backend/internal/authz"
	"github.com/chravel/chravel-backend/internal/db/models"
	"github.com/chravel/chravel-backend/internal/middleware"
)

// ChannelHandlers serves channel routes.
type ChannelHandlers struct {
	engine *authz.Engine
}

// NewChannelHandlers creates handlers backed by the authorization engine.
func NewChannelHandlers(engine *authz.Engine) *ChannelHandlers {
	return &ChannelHandlers{engine: engine}
}

type createChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /api/v1/trips/:trip_id/channels. Channels created here
// are always custom channels; role channels are provisioned automatically
// with their role.
func (h *ChannelHandlers) Create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	ch, err := h.engine.CreateChannel(c.Request.Context(), c.Param("trip_id"), req.Name, models.ChannelKindCustom, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, ch)
}

// List handles GET /api/v1/trips/:trip_id/channels.
func (h *ChannelHandlers) List(c *gin.Context) {
	list, err := h.engine.ListChannels(c.Request.Context(), c.Param("trip_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": list})
}

// ListMine handles GET /api/v1/trips/:trip_id/channels/mine, the channels the
// calling user is a member of.
func (h *ChannelHandlers) ListMine(c *gin.Context) {
	list, err := h.engine.ListUserChannels(c.Request.Context(), c.Param("trip_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": list})
}

type grantRoleRequest struct {
	RoleID string `json:"role_id" binding:"required"`
}

// GrantRole handles POST /api/v1/channels/:channel_id/roles. Role and channel
// must belong to the same trip; a cross-trip grant is rejected with nothing
// written.
func (h *ChannelHandlers) GrantRole(c *gin.Context) {
	var req grantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role_id is required"})
		return
	}

	err := h.engine.GrantRoleToChannel(c.Request.Context(), c.Param("channel_id"), req.RoleID, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RevokeRole handles DELETE /api/v1/channels/:channel_id/roles/:role_id.
func (h *ChannelHandlers) RevokeRole(c *gin.Context) {
	err := h.engine.RevokeRoleFromChannel(c.Request.Context(), c.Param("channel_id"), c.Param("role_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddMember handles POST /api/v1/channels/:channel_id/members, adding an
// explicit member outside role derivation.
func (h *ChannelHandlers) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	err := h.engine.AddChannelMember(c.Request.Context(), c.Param("channel_id"), req.UserID, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /api/v1/channels/:channel_id/members, returning
// both derived and explicit rows so callers can see where an access comes
// from.
func (h *ChannelHandlers) ListMembers(c *gin.Context) {
	list, err := h.engine.ListChannelMembers(c.Request.Context(), c.Param("channel_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": list})
}

// RemoveMember handles DELETE /api/v1/channels/:channel_id/members/:user_id.
// Only explicit rows can be removed; derived membership changes through role
// assignments, never here.
func (h *ChannelHandlers) RemoveMember(c *gin.Context) {
	err := h.engine.RemoveChannelMember(c.Request.Context(), c.Param("channel_id"), c.Param("user_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/channels/:channel_id.
func (h *ChannelHandlers) Delete(c *gin.Context) {
	err := h.engine.DeleteChannel(c.Request.Context(), c.Param("channel_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Access handles GET /api/v1/channels/:channel_id/access, evaluating whether
// the calling user may read and post in the channel. Always 200; the decision
// is in the body. An unknown channel is simply a deny.
func (h *ChannelHandlers) Access(c *gin.Context) {
	allowed, err := h.engine.CanAccessChannel(c.Request.Context(), middleware.CurrentUserID(c), c.Param("channel_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}
