// Package models - channel.go defines trip-scoped channels, role-to-channel
// grants, and channel membership rows. Membership rows are either explicit
// (added directly, typically on custom channels) or derived (materialized by
// the synchronizer from role grants). Only derived rows are ever touched by
// reconciliation.
package models

import "time"

// ChannelKind distinguishes role-derived channels from custom ones
type ChannelKind string

const (
	// ChannelKindRole marks a channel auto-provisioned alongside a role.
	// The provenance link (SourceRoleID) is informational: access is always
	// evaluated through channel_role_grants, never through provenance.
	ChannelKindRole ChannelKind = "role"

	// ChannelKindCustom marks a manually created channel.
	ChannelKindCustom ChannelKind = "custom"
)

// Channel represents a named sub-space within a trip
type Channel struct {
	ID           string      `db:"id" json:"id"`
	TripID       string      `db:"trip_id" json:"trip_id"`
	Name         string      `db:"name" json:"name"`
	Slug         string      `db:"slug" json:"slug"`
	Kind         ChannelKind `db:"kind" json:"kind"`
	SourceRoleID *string     `db:"source_role_id" json:"source_role_id,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// ChannelRoleGrant is a many-to-many edge from a role to a channel. The role
// and the channel must belong to the same trip (enforced at grant time).
type ChannelRoleGrant struct {
	ChannelID string    `db:"channel_id" json:"channel_id"`
	RoleID    string    `db:"role_id" json:"role_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChannelMember is a (channel, user) membership row. Derived rows are the
// synchronizer's materialization of role grants; explicit rows bypass role
// derivation entirely.
type ChannelMember struct {
	ChannelID string    `db:"channel_id" json:"channel_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Derived   bool      `db:"derived" json:"derived"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
