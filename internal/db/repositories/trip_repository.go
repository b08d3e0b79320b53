// trip_repository.go implements TripRepository. Trip creation is the
// engine's bootstrap point: the creator's membership and an all-capability
// admin grant are inserted in the same transaction as the trip row, so there
// is never a committed trip whose creator could not designate further admins.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
)

// TripRepository handles database operations for trips
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create inserts a trip together with the creator's active membership and
// full admin grant, atomically.
func (r *TripRepository) Create(ctx context.Context, name, creatorID string) (*models.Trip, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trip := &models.Trip{Name: name, CreatorID: creatorID}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO trips (name, creator_id) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		name, creatorID).Scan(&trip.ID, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trip_members (trip_id, user_id, status) VALUES ($1, $2, 'active')`,
		trip.ID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to add creator membership: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO admin_grants (trip_id, user_id, manage_roles, manage_channels, designate_admins)
		 VALUES ($1, $2, TRUE, TRUE, TRUE)`,
		trip.ID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap creator admin grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trip creation: %w", err)
	}

	return trip, nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := r.db.QueryRowxContext(ctx,
		`SELECT id, name, creator_id, created_at, updated_at FROM trips WHERE id = $1`,
		id).StructScan(trip)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return trip, nil
}

// GetCreator returns the creator user ID for a trip, or "" when the trip does
// not exist.
func (r *TripRepository) GetCreator(ctx context.Context, tripID string) (string, error) {
	var creatorID string
	err := r.db.QueryRowxContext(ctx,
		`SELECT creator_id FROM trips WHERE id = $1`, tripID).Scan(&creatorID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get trip creator: %w", err)
	}

	return creatorID, nil
}

// Delete removes a trip. Roles, assignments, channels, grants, and membership
// rows cascade at the schema level.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}

	return nil
}
