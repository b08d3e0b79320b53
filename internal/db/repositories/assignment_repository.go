// assignment_repository.go implements AssignmentRepository, the invariant
// enforcer for the role ledger. Two invariants are owned here:
//
//   - at most one assignment per (trip, user) is primary
//   - a user's first assignment in a trip is always primary
//
// Promotion demotes the previous primary inside the same transaction, under a
// row lock on the user's membership row so that two concurrent promotions for
// the same user serialize instead of both committing a primary. A partial
// unique index (role_assignments_one_primary) backs the invariant at the
// storage layer; a violation of it surfaces as ErrPrimaryConflict.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chravel/chravel-backend/internal/db/models"
)

// ErrPrimaryConflict is returned when the storage-level single-primary index
// rejects a write. The locking discipline makes this structurally unreachable;
// seeing it means a code path skipped the lock.
var ErrPrimaryConflict = errors.New("conflicting primary role assignment")

const primaryConflictConstraint = "role_assignments_one_primary"

// AssignmentRepository handles database operations for role assignments
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Assign inserts or updates the (trip, user, role) assignment. The first
// assignment for the pair is forced primary regardless of setPrimary; a later
// setPrimary demotes the current primary in the same transaction. When
// autoProvision is set, an active membership row is upserted first (the
// deployment-level policy for assigning roles to non-members). Channel
// membership is reconciled before commit.
func (r *AssignmentRepository) Assign(ctx context.Context, tripID, userID, roleID string, setPrimary, autoProvision bool) (*models.RoleAssignment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if autoProvision {
		if err := ensureMembershipTx(ctx, tx, tripID, userID); err != nil {
			return nil, err
		}
	}

	// The membership row is the lock anchor: locking the assignment rows
	// alone would not serialize two concurrent first assignments, because an
	// empty row set locks nothing.
	var one int
	err = tx.QueryRowxContext(ctx,
		`SELECT 1 FROM trip_members WHERE trip_id = $1 AND user_id = $2 FOR UPDATE`,
		tripID, userID).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to lock membership row: %w", err)
	}

	var existing int
	err = tx.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM (
			SELECT role_id FROM role_assignments
			WHERE trip_id = $1 AND user_id = $2 FOR UPDATE
		 ) held`,
		tripID, userID).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect existing assignments: %w", err)
	}

	isFirst := existing == 0
	isPrimary := isFirst || setPrimary

	if setPrimary && !isFirst {
		_, err = tx.ExecContext(ctx,
			`UPDATE role_assignments SET is_primary = FALSE
			 WHERE trip_id = $1 AND user_id = $2 AND is_primary AND role_id <> $3`,
			tripID, userID, roleID)
		if err != nil {
			return nil, fmt.Errorf("failed to demote current primary: %w", err)
		}
	}

	assignment := &models.RoleAssignment{TripID: tripID, UserID: userID, RoleID: roleID}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO role_assignments (trip_id, user_id, role_id, is_primary)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (trip_id, user_id, role_id)
		 DO UPDATE SET is_primary = role_assignments.is_primary OR EXCLUDED.is_primary
		 RETURNING is_primary, created_at`,
		tripID, userID, roleID, isPrimary).Scan(&assignment.IsPrimary, &assignment.CreatedAt)
	if err != nil {
		if isPrimaryConflict(err) {
			return nil, ErrPrimaryConflict
		}
		return nil, fmt.Errorf("failed to upsert assignment: %w", err)
	}

	if err := syncUserChannels(ctx, tx, tripID, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isPrimaryConflict(err) {
			return nil, ErrPrimaryConflict
		}
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}

	return assignment, nil
}

// Leave deletes the (trip, user, role) assignment and revokes derived channel
// memberships the role alone justified, in one transaction. A remaining
// secondary role is deliberately not promoted: zero primary roles with nonzero
// secondary roles is a valid terminal state.
func (r *AssignmentRepository) Leave(ctx context.Context, tripID, userID, roleID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowxContext(ctx,
		`SELECT 1 FROM trip_members WHERE trip_id = $1 AND user_id = $2 FOR UPDATE`,
		tripID, userID).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to lock membership row: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE trip_id = $1 AND user_id = $2 AND role_id = $3`,
		tripID, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	if err := syncUserChannels(ctx, tx, tripID, userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment removal: %w", err)
	}

	return nil
}

// GetPrimaryRole returns the user's primary role in a trip, or nil when the
// user has no primary assignment.
func (r *AssignmentRepository) GetPrimaryRole(ctx context.Context, tripID, userID string) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRowxContext(ctx,
		`SELECT ro.id, ro.trip_id, ro.name, ro.slug, ro.created_at, ro.updated_at
		 FROM role_assignments ra
		 JOIN roles ro ON ro.id = ra.role_id
		 WHERE ra.trip_id = $1 AND ra.user_id = $2 AND ra.is_primary`,
		tripID, userID).StructScan(role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary role: %w", err)
	}

	return role, nil
}

// ListByUser retrieves all of a user's assignments in a trip
func (r *AssignmentRepository) ListByUser(ctx context.Context, tripID, userID string) ([]*models.RoleAssignment, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT trip_id, user_id, role_id, is_primary, created_at
		 FROM role_assignments
		 WHERE trip_id = $1 AND user_id = $2
		 ORDER BY created_at`,
		tripID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]*models.RoleAssignment, 0)
	for rows.Next() {
		a := &models.RoleAssignment{}
		if err := rows.StructScan(a); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// Exists reports whether the (trip, user, role) assignment is present
func (r *AssignmentRepository) Exists(ctx context.Context, tripID, userID, roleID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM role_assignments
			WHERE trip_id = $1 AND user_id = $2 AND role_id = $3
		 )`,
		tripID, userID, roleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}

	return exists, nil
}

func isPrimaryConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == primaryConflictConstraint
	}
	return false
}
