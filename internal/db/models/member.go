// Package models - member.go defines trip membership records and their
// lifecycle states. Membership is an engine precondition: roles can only be
// assigned to active members (unless the deployment opts into
// auto-provisioning via engine.auto_provision_membership).
package models

import "time"

// MemberStatus is the lifecycle state of a trip membership
type MemberStatus string

const (
	MemberStatusActive MemberStatus = "active"
	MemberStatusLeft   MemberStatus = "left"
)

// Member represents a user's participation in a trip
type Member struct {
	TripID    string       `db:"trip_id" json:"trip_id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Status    MemberStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}
