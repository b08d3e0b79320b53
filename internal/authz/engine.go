// Package authz implements the trip role and channel authorization engine:
// role assignment with the single-primary invariant, admin capability grants,
// channel grant management, and the channel access evaluator that gates every
// message read and write.
//
// The engine is split into two layers. This package is the unprivileged
// public surface: it checks the actor's authority before every mutation and
// returns typed errors. The repositories underneath are the privileged
// internal layer: their lookups bypass any caller-level visibility so the
// evaluator can never recurse into itself (the classic "policy A consults
// table B, whose policy consults A" cycle).
package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
	"github.com/chravel/chravel-backend/internal/db/repositories"
	"github.com/chravel/chravel-backend/internal/telemetry"
)

// Options configures deployment-level engine policy.
type Options struct {
	// SuperAdmins lists user IDs with implicit full authority everywhere.
	// Super-admin identity is data injected at deployment time, never a
	// literal embedded in logic.
	SuperAdmins []string

	// AutoProvisionMembership makes AssignRole upsert an active membership
	// for the target user instead of rejecting with ErrNotAMember.
	AutoProvisionMembership bool
}

// Engine answers authorization queries and applies role/channel mutations.
// All methods are safe for concurrent use.
type Engine struct {
	trips       *repositories.TripRepository
	members     *repositories.MembershipRepository
	roles       *repositories.RoleRepository
	assignments *repositories.AssignmentRepository
	admins      *repositories.AdminGrantRepository
	channels    *repositories.ChannelRepository

	superAdmins   map[string]struct{}
	autoProvision bool
}

// New creates an Engine backed by the given database handle.
func New(db *sqlx.DB, opts Options) *Engine {
	super := make(map[string]struct{}, len(opts.SuperAdmins))
	for _, id := range opts.SuperAdmins {
		super[id] = struct{}{}
	}

	return &Engine{
		trips:         repositories.NewTripRepository(db),
		members:       repositories.NewMembershipRepository(db),
		roles:         repositories.NewRoleRepository(db),
		assignments:   repositories.NewAssignmentRepository(db),
		admins:        repositories.NewAdminGrantRepository(db),
		channels:      repositories.NewChannelRepository(db),
		superAdmins:   super,
		autoProvision: opts.AutoProvisionMembership,
	}
}

// ---------------------------------------------------------------------------
// Trips and membership
// ---------------------------------------------------------------------------

// CreateTrip creates a trip. The creator's membership and all-capability
// admin grant are bootstrapped in the same transaction, so the creator can
// designate further admins from the first moment the trip exists.
func (e *Engine) CreateTrip(ctx context.Context, name, creatorID string) (*models.Trip, error) {
	trip, err := e.trips.Create(ctx, name, creatorID)
	if err != nil {
		return nil, err
	}

	slog.Info("trip created", "trip_id", trip.ID, "creator_id", creatorID)
	return trip, nil
}

// GetTrip retrieves a trip, or ErrNotFound.
func (e *Engine) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := e.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNotFound
	}
	return trip, nil
}

// AddMember adds (or re-activates) an active membership. Requires
// manage_roles authority.
func (e *Engine) AddMember(ctx context.Context, tripID, userID, actorID string) error {
	if err := e.requireCapability(ctx, tripID, actorID, CapabilityManageRoles); err != nil {
		return err
	}
	return e.members.Ensure(ctx, tripID, userID)
}

// RemoveMember marks a membership as left and revokes everything it
// justified: the user's role assignments and derived channel rows. Members
// may remove themselves; removing others requires manage_roles.
func (e *Engine) RemoveMember(ctx context.Context, tripID, userID, actorID string) error {
	if actorID != userID {
		if err := e.requireCapability(ctx, tripID, actorID, CapabilityManageRoles); err != nil {
			return err
		}
	}

	err := e.members.MarkLeft(ctx, tripID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ListMembers lists a trip's membership rows.
func (e *Engine) ListMembers(ctx context.Context, tripID string) ([]*models.Member, error) {
	return e.members.List(ctx, tripID)
}

// DeleteTrip removes a trip and, via cascade, every role, assignment, grant,
// and channel row under it. Only the trip creator or a super-admin may do
// this; no capability is strong enough.
func (e *Engine) DeleteTrip(ctx context.Context, tripID, actorID string) error {
	trip, err := e.trips.GetByID(ctx, tripID)
	if err != nil {
		return err
	}
	if trip == nil {
		return ErrNotFound
	}

	if trip.CreatorID != actorID && !e.isSuperAdmin(actorID) {
		return fmt.Errorf("%w: only the trip creator can delete a trip", ErrForbidden)
	}

	if err := e.trips.Delete(ctx, tripID); err != nil {
		return err
	}

	slog.Info("trip deleted", "trip_id", tripID, "actor_id", actorID)
	return nil
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

// CreateRole creates a role (idempotently on its slug). With autoChannel the
// matching role-derived channel and grant are provisioned in the same
// transaction. Requires manage_roles authority.
func (e *Engine) CreateRole(ctx context.Context, tripID, name string, autoChannel bool, actorID string) (*models.Role, error) {
	if err := e.requireCapability(ctx, tripID, actorID, CapabilityManageRoles); err != nil {
		return nil, err
	}

	role, created, err := e.roles.Create(ctx, tripID, name, autoChannel)
	if err != nil {
		return nil, err
	}

	if created {
		slog.Info("role created", "trip_id", tripID, "role_id", role.ID, "slug", role.Slug, "auto_channel", autoChannel)
	}
	return role, nil
}

// DeleteRole removes a role; assignments and channel grants cascade and every
// holder's channel membership is re-derived. Requires manage_roles authority.
func (e *Engine) DeleteRole(ctx context.Context, roleID, actorID string) error {
	role, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrNotFound
	}

	if err := e.requireCapability(ctx, role.TripID, actorID, CapabilityManageRoles); err != nil {
		return err
	}

	err = e.roles.Delete(ctx, roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	slog.Info("role deleted", "trip_id", role.TripID, "role_id", roleID, "slug", role.Slug)
	return nil
}

// ListRoles lists a trip's roles.
func (e *Engine) ListRoles(ctx context.Context, tripID string) ([]*models.Role, error) {
	return e.roles.ListByTrip(ctx, tripID)
}

// ---------------------------------------------------------------------------
// Assignment ledger
// ---------------------------------------------------------------------------

// AssignRole binds a user to a role. Preconditions, each a distinct failure:
//
//  1. actor holds manage_roles (or is creator/super-admin): ErrForbidden
//  2. user is an active member: ErrNotAMember (skipped when the deployment
//     enables auto-provisioning, which upserts the membership instead)
//  3. the role belongs to the trip: ErrCrossTripRole
//
// The first role a user receives in a trip is primary regardless of
// setPrimary; a later setPrimary demotes the previous primary atomically.
func (e *Engine) AssignRole(ctx context.Context, tripID, userID, roleID string, setPrimary bool, actorID string) (*models.RoleAssignment, error) {
	assignment, err := e.assignRole(ctx, tripID, userID, roleID, setPrimary, actorID)
	telemetry.RoleAssignmentsTotal.WithLabelValues("assign", resultLabel(err)).Inc()
	return assignment, err
}

func (e *Engine) assignRole(ctx context.Context, tripID, userID, roleID string, setPrimary bool, actorID string) (*models.RoleAssignment, error) {
	if err := e.requireCapability(ctx, tripID, actorID, CapabilityManageRoles); err != nil {
		return nil, err
	}

	if !e.autoProvision {
		active, err := e.members.IsActiveMember(ctx, tripID, userID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrNotAMember
		}
	}

	role, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrNotFound
	}
	if role.TripID != tripID {
		return nil, ErrCrossTripRole
	}

	assignment, err := e.assignments.Assign(ctx, tripID, userID, roleID, setPrimary, e.autoProvision)
	if err != nil {
		return nil, err
	}

	slog.Info("role assigned",
		"trip_id", tripID, "user_id", userID, "role_id", roleID,
		"primary", assignment.IsPrimary, "actor_id", actorID)
	return assignment, nil
}

// LeaveRole removes the caller's own assignment. No admin authority is
// involved beyond "this is my assignment". A remaining secondary role is not
// promoted; zero primary with nonzero secondaries is a valid state.
func (e *Engine) LeaveRole(ctx context.Context, tripID, userID, roleID, actorID string) error {
	err := e.leaveRole(ctx, tripID, userID, roleID, actorID)
	telemetry.RoleAssignmentsTotal.WithLabelValues("leave", resultLabel(err)).Inc()
	return err
}

func (e *Engine) leaveRole(ctx context.Context, tripID, userID, roleID, actorID string) error {
	if actorID != userID && !e.isSuperAdmin(actorID) {
		return ErrForbidden
	}

	err := e.assignments.Leave(ctx, tripID, userID, roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	slog.Info("role left", "trip_id", tripID, "user_id", userID, "role_id", roleID)
	return nil
}

// GetPrimaryRole returns the user's primary role in the trip, or nil when
// there is none (a valid state after LeaveRole removed it).
func (e *Engine) GetPrimaryRole(ctx context.Context, userID, tripID string) (*models.Role, error) {
	return e.assignments.GetPrimaryRole(ctx, tripID, userID)
}

// ListAssignments lists a user's assignments in a trip.
func (e *Engine) ListAssignments(ctx context.Context, tripID, userID string) ([]*models.RoleAssignment, error) {
	return e.assignments.ListByUser(ctx, tripID, userID)
}

// ---------------------------------------------------------------------------
// Admin grants
// ---------------------------------------------------------------------------

// GrantAdmin sets a user's capability set in a trip. Requires
// designate_admins authority. The trip creator's grant may never become
// empty; stripping the creator is rejected.
func (e *Engine) GrantAdmin(ctx context.Context, tripID, userID string, caps models.AdminCapabilities, actorID string) error {
	if err := e.requireCapability(ctx, tripID, actorID, CapabilityDesignateAdmins); err != nil {
		return err
	}

	creator, err := e.trips.GetCreator(ctx, tripID)
	if err != nil {
		return err
	}
	if creator == "" {
		return ErrNotFound
	}
	if userID == creator && caps.IsEmpty() {
		return fmt.Errorf("%w: the trip creator's admin grant cannot be emptied", ErrForbidden)
	}

	active, err := e.members.IsActiveMember(ctx, tripID, userID)
	if err != nil {
		return err
	}
	if !active {
		return ErrNotAMember
	}

	if err := e.admins.Upsert(ctx, tripID, userID, caps); err != nil {
		return err
	}

	slog.Info("admin grant updated", "trip_id", tripID, "user_id", userID, "actor_id", actorID)
	return nil
}

// HasAdminPermission reports whether the user holds the capability in the
// trip. The trip creator and configured super-admins implicitly hold every
// capability.
func (e *Engine) HasAdminPermission(ctx context.Context, userID, tripID string, capability Capability) (bool, error) {
	if !capability.IsValid() {
		return false, fmt.Errorf("invalid capability %q", capability)
	}

	if e.isSuperAdmin(userID) {
		return true, nil
	}

	creator, err := e.trips.GetCreator(ctx, tripID)
	if err != nil {
		return false, err
	}
	if creator != "" && creator == userID {
		return true, nil
	}

	return e.admins.HasCapability(ctx, tripID, userID, capability.column())
}

// ListAdminGrants lists a trip's admin grants.
func (e *Engine) ListAdminGrants(ctx context.Context, tripID string) ([]*models.AdminGrant, error) {
	return e.admins.ListByTrip(ctx, tripID)
}

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

// CreateChannel creates a custom channel (idempotently on its slug).
// Requires manage_channels authority.
func (e *Engine) CreateChannel(ctx context.Context, tripID, name string, kind models.ChannelKind, actorID string) (*models.Channel, error) {
	if err := e.requireCapability(ctx, tripID, actorID, CapabilityManageChannels); err != nil {
		return nil, err
	}

	ch, created, err := e.channels.Create(ctx, tripID, name, kind)
	if err != nil {
		return nil, err
	}

	if created {
		slog.Info("channel created", "trip_id", tripID, "channel_id", ch.ID, "slug", ch.Slug, "kind", kind)
	}
	return ch, nil
}

// GrantRoleToChannel links a role to a channel. ErrCrossTripRole when they
// belong to different trips; nothing is mutated in that case. Requires
// manage_channels authority.
func (e *Engine) GrantRoleToChannel(ctx context.Context, channelID, roleID, actorID string) error {
	ch, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrNotFound
	}

	if err := e.requireCapability(ctx, ch.TripID, actorID, CapabilityManageChannels); err != nil {
		return err
	}

	return e.mapGrantErr(e.channels.GrantRole(ctx, channelID, roleID))
}

// RevokeRoleFromChannel removes a role's grant; each holder's derived
// membership is re-derived so access justified only by this grant disappears
// immediately. Requires manage_channels authority.
func (e *Engine) RevokeRoleFromChannel(ctx context.Context, channelID, roleID, actorID string) error {
	ch, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrNotFound
	}

	if err := e.requireCapability(ctx, ch.TripID, actorID, CapabilityManageChannels); err != nil {
		return err
	}

	return e.mapGrantErr(e.channels.RevokeRole(ctx, channelID, roleID))
}

// AddChannelMember adds an explicit (non-derived) member to a channel,
// bypassing role derivation. Requires manage_channels authority; the target
// must be an active trip member.
func (e *Engine) AddChannelMember(ctx context.Context, channelID, userID, actorID string) error {
	ch, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrNotFound
	}

	if err := e.requireCapability(ctx, ch.TripID, actorID, CapabilityManageChannels); err != nil {
		return err
	}

	active, err := e.members.IsActiveMember(ctx, ch.TripID, userID)
	if err != nil {
		return err
	}
	if !active {
		return ErrNotAMember
	}

	return e.channels.AddExplicitMember(ctx, channelID, userID)
}

// RemoveChannelMember removes an explicit membership row. Derived rows belong
// to the synchronizer and cannot be removed this way; attempting it reports
// ErrNotFound. Requires manage_channels authority.
func (e *Engine) RemoveChannelMember(ctx context.Context, channelID, userID, actorID string) error {
	ch, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrNotFound
	}

	if err := e.requireCapability(ctx, ch.TripID, actorID, CapabilityManageChannels); err != nil {
		return err
	}

	err = e.channels.RemoveExplicitMember(ctx, channelID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeleteChannel removes a channel with its grants and membership rows.
// Requires manage_channels authority.
func (e *Engine) DeleteChannel(ctx context.Context, channelID, actorID string) error {
	ch, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrNotFound
	}

	if err := e.requireCapability(ctx, ch.TripID, actorID, CapabilityManageChannels); err != nil {
		return err
	}

	if err := e.channels.Delete(ctx, channelID); err != nil {
		return err
	}

	slog.Info("channel deleted", "trip_id", ch.TripID, "channel_id", channelID, "actor_id", actorID)
	return nil
}

// ListChannels lists a trip's channels.
func (e *Engine) ListChannels(ctx context.Context, tripID string) ([]*models.Channel, error) {
	return e.channels.ListByTrip(ctx, tripID)
}

// ListChannelMembers lists a channel's membership rows, derived and explicit.
func (e *Engine) ListChannelMembers(ctx context.Context, channelID string) ([]*models.ChannelMember, error) {
	ch, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrNotFound
	}
	return e.channels.ListMembers(ctx, channelID)
}

// ListUserChannels lists the channels a user is a member of in a trip.
func (e *Engine) ListUserChannels(ctx context.Context, tripID, userID string) ([]*models.Channel, error) {
	return e.channels.ListForUser(ctx, tripID, userID)
}

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

// CanAccessChannel is the query every message read/write path calls. Access
// is the OR of four independent, non-recursive paths, checked in order with
// short-circuiting:
//
//  1. any held role (primary or secondary) has a grant to the channel
//  2. the user holds any admin grant in the channel's trip
//  3. the user created the trip
//  4. the user has an explicit membership row for the channel
//
// A missing channel simply evaluates to false on every path.
func (e *Engine) CanAccessChannel(ctx context.Context, userID, channelID string) (bool, error) {
	if e.isSuperAdmin(userID) {
		telemetry.AuthzDecisionsTotal.WithLabelValues("super_admin", "allow").Inc()
		return true, nil
	}

	paths := []struct {
		name  string
		check func(context.Context, string, string) (bool, error)
	}{
		{"role_grant", e.channels.UserHoldsGrantedRole},
		{"admin", e.channels.UserIsTripAdmin},
		{"creator", e.channels.UserIsTripCreator},
		{"explicit", e.channels.UserIsExplicitMember},
	}

	for _, p := range paths {
		ok, err := p.check(ctx, channelID, userID)
		if err != nil {
			return false, err
		}
		if ok {
			telemetry.AuthzDecisionsTotal.WithLabelValues(p.name, "allow").Inc()
			return true, nil
		}
	}

	telemetry.AuthzDecisionsTotal.WithLabelValues("none", "deny").Inc()
	return false, nil
}

// ---------------------------------------------------------------------------
// Roster sync
// ---------------------------------------------------------------------------

// RosterEntry is one (user, role) pair from an external roster.
type RosterEntry struct {
	UserID   string `json:"user_id" binding:"required"`
	RoleName string `json:"role_name" binding:"required"`
	Primary  bool   `json:"primary"`
}

// RosterSyncResult summarizes a bulk sync.
type RosterSyncResult struct {
	RolesCreated int `json:"roles_created"`
	Applied      int `json:"applied"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// SyncRoster applies a bulk roster idempotently: roles are created (with
// auto-channels) on first sight and re-used afterwards, memberships are
// provisioned, and assignments are upserted. Running the same roster twice is
// a no-op. This is a system-privileged path; the transport layer gates it
// with the machine sync token, not a user actor.
func (e *Engine) SyncRoster(ctx context.Context, tripID string, entries []RosterEntry) (*RosterSyncResult, error) {
	trip, err := e.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNotFound
	}

	result := &RosterSyncResult{}
	for _, entry := range entries {
		role, created, err := e.roles.Create(ctx, tripID, entry.RoleName, true)
		if err != nil {
			telemetry.RosterSyncEntriesTotal.WithLabelValues("failed").Inc()
			result.Failed++
			slog.Warn("roster sync entry failed", "trip_id", tripID, "user_id", entry.UserID, "role", entry.RoleName, "error", err)
			continue
		}
		if created {
			result.RolesCreated++
		}

		// A secondary entry whose assignment already exists cannot change
		// anything; skip the write transaction. Primary entries always go
		// through Assign since they may promote.
		if !entry.Primary {
			held, err := e.assignments.Exists(ctx, tripID, entry.UserID, role.ID)
			if err != nil {
				telemetry.RosterSyncEntriesTotal.WithLabelValues("failed").Inc()
				result.Failed++
				slog.Warn("roster sync entry failed", "trip_id", tripID, "user_id", entry.UserID, "role", entry.RoleName, "error", err)
				continue
			}
			if held {
				telemetry.RosterSyncEntriesTotal.WithLabelValues("skipped").Inc()
				result.Skipped++
				continue
			}
		}

		// Roster syncs always provision membership: the external roster is
		// authoritative for who participates.
		if _, err := e.assignments.Assign(ctx, tripID, entry.UserID, role.ID, entry.Primary, true); err != nil {
			telemetry.RosterSyncEntriesTotal.WithLabelValues("failed").Inc()
			result.Failed++
			slog.Warn("roster sync assignment failed", "trip_id", tripID, "user_id", entry.UserID, "role", entry.RoleName, "error", err)
			continue
		}

		telemetry.RosterSyncEntriesTotal.WithLabelValues("applied").Inc()
		result.Applied++
	}

	slog.Info("roster sync complete",
		"trip_id", tripID, "entries", len(entries),
		"roles_created", result.RolesCreated, "applied", result.Applied,
		"skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (e *Engine) isSuperAdmin(userID string) bool {
	_, ok := e.superAdmins[userID]
	return ok
}

// requireCapability resolves the actor's authority for a management
// operation: super-admin, trip creator, or the named capability.
func (e *Engine) requireCapability(ctx context.Context, tripID, actorID string, capability Capability) error {
	if e.isSuperAdmin(actorID) {
		return nil
	}

	creator, err := e.trips.GetCreator(ctx, tripID)
	if err != nil {
		return err
	}
	if creator == "" {
		return ErrNotFound
	}
	if creator == actorID {
		return nil
	}

	held, err := e.admins.HasCapability(ctx, tripID, actorID, capability.column())
	if err != nil {
		return err
	}
	if !held {
		return ErrForbidden
	}

	return nil
}

func (e *Engine) mapGrantErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrCrossTripGrant):
		return ErrCrossTripRole
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	default:
		return err
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrCrossTripRole):
		return "cross_trip_role"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyPrimaryConflict):
		return "primary_conflict"
	default:
		return "error"
	}
}
