// Package models - role.go defines trip-scoped roles and role assignments.
// The slug is derived deterministically from the name and is unique per trip,
// which makes role creation idempotent under repeated roster syncs.
package models

import "time"

// Role represents a named role within a trip
type Role struct {
	ID        string    `db:"id" json:"id"`
	TripID    string    `db:"trip_id" json:"trip_id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoleAssignment binds a user to a role within a trip. At most one assignment
// per (trip, user) may be primary, and a user's first assignment in a trip is
// always primary regardless of what the caller asked for.
type RoleAssignment struct {
	TripID    string    `db:"trip_id" json:"trip_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	RoleID    string    `db:"role_id" json:"role_id"`
	IsPrimary bool      `db:"is_primary" json:"is_primary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
