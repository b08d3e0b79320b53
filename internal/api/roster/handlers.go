// Package roster implements the role, assignment, and admin grant HTTP
// handlers, plus the machine-token-gated bulk roster sync endpoint.
package roster

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chravel/chravel-backend/internal/api/httperr"
	"github.com/chravel/chravel-backend/internal/authz"
	"github.com/chravel/chravel-backend/internal/db/models"
	"github.com/chravel/chravel-backend/internal/middleware"
)

// RoleHandlers serves role and assignment ledger routes.
type RoleHandlers struct {
	engine *authz.Engine
}

// NewRoleHandlers creates handlers backed by the authorization engine.
func NewRoleHandlers(engine *authz.Engine) *RoleHandlers {
	return &RoleHandlers{engine: engine}
}

type createRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	AutoChannel bool   `json:"auto_channel"`
}

// CreateRole handles POST /api/v1/trips/:trip_id/roles. Creation is
// idempotent on the role's slug; re-posting an existing role returns it with
// 200 instead of 201.
func (h *RoleHandlers) CreateRole(c *gin.Context) {
	var req createRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	role, err := h.engine.CreateRole(c.Request.Context(), c.Param("trip_id"), req.Name, req.AutoChannel, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, role)
}

// ListRoles handles GET /api/v1/trips/:trip_id/roles.
func (h *RoleHandlers) ListRoles(c *gin.Context) {
	roles, err := h.engine.ListRoles(c.Request.Context(), c.Param("trip_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// DeleteRole handles DELETE /api/v1/roles/:role_id.
func (h *RoleHandlers) DeleteRole(c *gin.Context) {
	err := h.engine.DeleteRole(c.Request.Context(), c.Param("role_id"), middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type assignRoleRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	RoleID  string `json:"role_id" binding:"required"`
	Primary bool   `json:"primary"`
}

// AssignRole handles POST /api/v1/trips/:trip_id/assignments. The first role
// a user receives in the trip becomes primary regardless of the flag.
func (h *RoleHandlers) AssignRole(c *gin.Context) {
	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and role_id are required"})
		return
	}

	assignment, err := h.engine.AssignRole(c.Request.Context(), c.Param("trip_id"), req.UserID, req.RoleID, req.Primary, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, assignment)
}

// LeaveRole handles DELETE /api/v1/trips/:trip_id/assignments/:role_id. Users
// drop their own assignments; nobody else's.
func (h *RoleHandlers) LeaveRole(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	err := h.engine.LeaveRole(c.Request.Context(), c.Param("trip_id"), userID, c.Param("role_id"), userID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetPrimaryRole handles GET /api/v1/trips/:trip_id/users/:user_id/primary-role.
// A user with no primary role gets a 200 with a null role, not a 404; that is
// a valid ledger state, not a missing resource.
func (h *RoleHandlers) GetPrimaryRole(c *gin.Context) {
	role, err := h.engine.GetPrimaryRole(c.Request.Context(), c.Param("user_id"), c.Param("trip_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"role": role})
}

// ListAssignments handles GET /api/v1/trips/:trip_id/users/:user_id/assignments.
func (h *RoleHandlers) ListAssignments(c *gin.Context) {
	assignments, err := h.engine.ListAssignments(c.Request.Context(), c.Param("trip_id"), c.Param("user_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

type grantAdminRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	ManageRoles     bool   `json:"manage_roles"`
	ManageChannels  bool   `json:"manage_channels"`
	DesignateAdmins bool   `json:"designate_admins"`
}

// GrantAdmin handles PUT /api/v1/trips/:trip_id/admins. Posting all-false
// capabilities revokes the grant, except for the trip creator whose grant can
// never be emptied.
func (h *RoleHandlers) GrantAdmin(c *gin.Context) {
	var req grantAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	caps := models.AdminCapabilities{
		ManageRoles:     req.ManageRoles,
		ManageChannels:  req.ManageChannels,
		DesignateAdmins: req.DesignateAdmins,
	}

	err := h.engine.GrantAdmin(c.Request.Context(), c.Param("trip_id"), req.UserID, caps, middleware.CurrentUserID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListAdmins handles GET /api/v1/trips/:trip_id/admins.
func (h *RoleHandlers) ListAdmins(c *gin.Context) {
	grants, err := h.engine.ListAdminGrants(c.Request.Context(), c.Param("trip_id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"admins": grants})
}

type syncRequest struct {
	Entries []authz.RosterEntry `json:"entries" binding:"required"`
}

// Sync handles POST /api/v1/trips/:trip_id/roster/sync. This route is gated
// by the machine sync token middleware, not a user JWT; the external roster
// system is the actor.
func (h *RoleHandlers) Sync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entries is required"})
		return
	}

	result, err := h.engine.SyncRoster(c.Request.Context(), c.Param("trip_id"), req.Entries)
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
