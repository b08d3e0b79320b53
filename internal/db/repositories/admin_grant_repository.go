// admin_grant_repository.go implements AdminGrantRepository, the per-(trip,
// user) capability store. Capability lookups here are privileged internal
// queries: the authorization evaluator calls them directly and they must never
// route back through the access-controlled public surface, or evaluation would
// recurse.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
)

// AdminGrantRepository handles database operations for admin grants
type AdminGrantRepository struct {
	db *sqlx.DB
}

// NewAdminGrantRepository creates a new admin grant repository
func NewAdminGrantRepository(db *sqlx.DB) *AdminGrantRepository {
	return &AdminGrantRepository{db: db}
}

// Upsert creates or replaces a user's capability set in a trip
func (r *AdminGrantRepository) Upsert(ctx context.Context, tripID, userID string, caps models.AdminCapabilities) error {
	query := `
		INSERT INTO admin_grants (trip_id, user_id, manage_roles, manage_channels, designate_admins)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trip_id, user_id)
		DO UPDATE SET manage_roles = $3, manage_channels = $4, designate_admins = $5, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		tripID, userID, caps.ManageRoles, caps.ManageChannels, caps.DesignateAdmins)
	if err != nil {
		return fmt.Errorf("failed to upsert admin grant: %w", err)
	}

	return nil
}

// Get retrieves a user's admin grant in a trip
func (r *AdminGrantRepository) Get(ctx context.Context, tripID, userID string) (*models.AdminGrant, error) {
	grant := &models.AdminGrant{TripID: tripID, UserID: userID}
	err := r.db.QueryRowxContext(ctx,
		`SELECT manage_roles, manage_channels, designate_admins, created_at, updated_at
		 FROM admin_grants WHERE trip_id = $1 AND user_id = $2`,
		tripID, userID).Scan(
		&grant.Capabilities.ManageRoles,
		&grant.Capabilities.ManageChannels,
		&grant.Capabilities.DesignateAdmins,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin grant: %w", err)
	}

	return grant, nil
}

// HasCapability reports whether the user holds the named capability column in
// the trip. The column name is always one of the three fixed capability
// columns, supplied by the engine, never by external input.
func (r *AdminGrantRepository) HasCapability(ctx context.Context, tripID, userID, column string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (
			SELECT 1 FROM admin_grants
			WHERE trip_id = $1 AND user_id = $2 AND %s
		 )`, column)

	var held bool
	if err := r.db.QueryRowxContext(ctx, query, tripID, userID).Scan(&held); err != nil {
		return false, fmt.Errorf("failed to check admin capability: %w", err)
	}

	return held, nil
}

// IsAdmin reports whether the user holds any admin grant in the trip
func (r *AdminGrantRepository) IsAdmin(ctx context.Context, tripID, userID string) (bool, error) {
	var held bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_grants WHERE trip_id = $1 AND user_id = $2)`,
		tripID, userID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("failed to check admin grant: %w", err)
	}

	return held, nil
}

// ListByTrip retrieves all admin grants of a trip
func (r *AdminGrantRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.AdminGrant, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT trip_id, user_id, manage_roles, manage_channels, designate_admins, created_at, updated_at
		 FROM admin_grants WHERE trip_id = $1 ORDER BY created_at`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin grants: %w", err)
	}
	defer rows.Close()

	grants := make([]*models.AdminGrant, 0)
	for rows.Next() {
		g := &models.AdminGrant{}
		err := rows.Scan(
			&g.TripID,
			&g.UserID,
			&g.Capabilities.ManageRoles,
			&g.Capabilities.ManageChannels,
			&g.Capabilities.DesignateAdmins,
			&g.CreatedAt,
			&g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin grant: %w", err)
		}
		grants = append(grants, g)
	}

	return grants, rows.Err()
}
