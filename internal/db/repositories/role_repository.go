// role_repository.go implements RoleRepository. Role creation is idempotent
// on the (trip, slug) pair because the roster sync re-derives roles from an
// external source and may run any number of times; a collision returns the
// existing role instead of erroring. The optional auto-channel is provisioned
// and granted in the same transaction as the role insert so there is never a
// window where the role exists without its channel.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
	"github.com/chravel/chravel-backend/pkg/slug"
)

// RoleRepository handles database operations for roles
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create inserts a role, returning the existing one on a slug collision. The
// boolean result reports whether a new role row was created. When autoChannel
// is set, a matching role-derived channel and its grant are provisioned in the
// same transaction (also idempotently).
func (r *RoleRepository) Create(ctx context.Context, tripID, name string, autoChannel bool) (*models.Role, bool, error) {
	roleSlug := slug.Make(name)
	if roleSlug == "" {
		return nil, false, fmt.Errorf("role name %q produces an empty slug", name)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	role := &models.Role{TripID: tripID, Name: name, Slug: roleSlug}
	created := true
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO roles (trip_id, name, slug) VALUES ($1, $2, $3)
		 ON CONFLICT (trip_id, slug) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		tripID, name, roleSlug).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		// Slug collision: fetch the existing role instead.
		created = false
		err = tx.QueryRowxContext(ctx,
			`SELECT id, trip_id, name, slug, created_at, updated_at
			 FROM roles WHERE trip_id = $1 AND slug = $2`,
			tripID, roleSlug).StructScan(role)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create role: %w", err)
	}

	if autoChannel {
		if err := provisionRoleChannel(ctx, tx, role); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit role creation: %w", err)
	}

	return role, created, nil
}

// provisionRoleChannel upserts the role-derived channel and its grant, then
// reconciles membership for current holders of the role. Safe to repeat.
func provisionRoleChannel(ctx context.Context, tx *sqlx.Tx, role *models.Role) error {
	var channelID string
	err := tx.QueryRowxContext(ctx,
		`INSERT INTO channels (trip_id, name, slug, kind, source_role_id)
		 VALUES ($1, $2, $3, 'role', $4)
		 ON CONFLICT (trip_id, slug) DO NOTHING
		 RETURNING id`,
		role.TripID, role.Name, role.Slug, role.ID).Scan(&channelID)
	if err == sql.ErrNoRows {
		err = tx.QueryRowxContext(ctx,
			`SELECT id FROM channels WHERE trip_id = $1 AND slug = $2`,
			role.TripID, role.Slug).Scan(&channelID)
	}
	if err != nil {
		return fmt.Errorf("failed to provision role channel: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO channel_role_grants (channel_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (channel_id, role_id) DO NOTHING`,
		channelID, role.ID)
	if err != nil {
		return fmt.Errorf("failed to grant role channel: %w", err)
	}

	holders, err := roleHolders(ctx, tx, role.ID)
	if err != nil {
		return err
	}

	return syncUsersChannels(ctx, tx, role.TripID, holders)
}

// Delete removes a role. Assignments and channel grants cascade; every user
// who held the role is re-evaluated in the same transaction so channels no
// longer justified are revoked immediately.
func (r *RoleRepository) Delete(ctx context.Context, roleID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tripID string
	err = tx.QueryRowxContext(ctx,
		`SELECT trip_id FROM roles WHERE id = $1`, roleID).Scan(&tripID)
	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("failed to look up role: %w", err)
	}

	// Collect holders before the delete cascades their assignments away.
	holders, err := roleHolders(ctx, tx, roleID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	if err := syncUsersChannels(ctx, tx, tripID, holders); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role deletion: %w", err)
	}

	return nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRowxContext(ctx,
		`SELECT id, trip_id, name, slug, created_at, updated_at FROM roles WHERE id = $1`,
		id).StructScan(role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// GetBySlug retrieves a role by its trip-scoped slug
func (r *RoleRepository) GetBySlug(ctx context.Context, tripID, roleSlug string) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRowxContext(ctx,
		`SELECT id, trip_id, name, slug, created_at, updated_at
		 FROM roles WHERE trip_id = $1 AND slug = $2`,
		tripID, roleSlug).StructScan(role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// ListByTrip retrieves all roles of a trip
func (r *RoleRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.Role, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, trip_id, name, slug, created_at, updated_at
		 FROM roles WHERE trip_id = $1 ORDER BY slug`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role := &models.Role{}
		if err := rows.StructScan(role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}
