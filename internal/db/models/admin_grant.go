// Package models - admin_grant.go defines per-(trip, user) administrative
// capability sets. Capabilities are a fixed struct of named booleans rather
// than an open-ended map so that capability names are checked at compile time.
package models

import "time"

// AdminCapabilities is the set of management capabilities an admin may hold.
// The three capabilities are independent, not a hierarchy.
type AdminCapabilities struct {
	ManageRoles     bool `db:"manage_roles" json:"manage_roles"`
	ManageChannels  bool `db:"manage_channels" json:"manage_channels"`
	DesignateAdmins bool `db:"designate_admins" json:"designate_admins"`
}

// AllCapabilities returns a capability set with everything enabled, used to
// bootstrap the trip creator's grant.
func AllCapabilities() AdminCapabilities {
	return AdminCapabilities{ManageRoles: true, ManageChannels: true, DesignateAdmins: true}
}

// IsEmpty reports whether the set grants nothing. The trip creator's grant is
// never allowed to become empty.
func (c AdminCapabilities) IsEmpty() bool {
	return !c.ManageRoles && !c.ManageChannels && !c.DesignateAdmins
}

// AdminGrant represents a user's administrative capabilities within a trip
type AdminGrant struct {
	TripID       string            `db:"trip_id" json:"trip_id"`
	UserID       string            `db:"user_id" json:"user_id"`
	Capabilities AdminCapabilities `json:"capabilities"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}
