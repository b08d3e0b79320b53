// Package models - trip.go defines the Trip model, the tenant boundary for all
// roster and channel entities. A trip's creator holds implicit admin authority
// and is bootstrapped with a full admin grant at creation time.
package models

import "time"

// Trip represents a shared collaborative workspace
type Trip struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatorID string    `db:"creator_id" json:"creator_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
