// membership_repository.go implements MembershipRepository. Membership is
// consumed by the engine as a precondition ("is this user an active member of
// this trip?"); removing a member carries the same revocation consequences as
// leaving every role, so MarkLeft drops the user's assignments and derived
// channel rows in one transaction.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
)

// MembershipRepository handles database operations for trip membership
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Ensure upserts an active membership for the user. Re-joining a trip the
// user previously left re-activates the existing row.
func (r *MembershipRepository) Ensure(ctx context.Context, tripID, userID string) error {
	query := `
		INSERT INTO trip_members (trip_id, user_id, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (trip_id, user_id)
		DO UPDATE SET status = 'active', updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, tripID, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure membership: %w", err)
	}

	return nil
}

// ensureTx is the transactional variant used by auto-provisioning inside the
// assignment transaction.
func ensureMembershipTx(ctx context.Context, ext sqlx.ExtContext, tripID, userID string) error {
	query := `
		INSERT INTO trip_members (trip_id, user_id, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (trip_id, user_id)
		DO UPDATE SET status = 'active', updated_at = NOW()
	`

	if _, err := ext.ExecContext(ctx, query, tripID, userID); err != nil {
		return fmt.Errorf("failed to ensure membership: %w", err)
	}

	return nil
}

// Get retrieves a membership row
func (r *MembershipRepository) Get(ctx context.Context, tripID, userID string) (*models.Member, error) {
	member := &models.Member{}
	err := r.db.QueryRowxContext(ctx,
		`SELECT trip_id, user_id, status, created_at, updated_at
		 FROM trip_members WHERE trip_id = $1 AND user_id = $2`,
		tripID, userID).StructScan(member)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// IsActiveMember reports whether the user is an active member of the trip
func (r *MembershipRepository) IsActiveMember(ctx context.Context, tripID, userID string) (bool, error) {
	var active bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM trip_members
			WHERE trip_id = $1 AND user_id = $2 AND status = 'active'
		 )`,
		tripID, userID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return active, nil
}

// List retrieves all members of a trip
func (r *MembershipRepository) List(ctx context.Context, tripID string) ([]*models.Member, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT trip_id, user_id, status, created_at, updated_at
		 FROM trip_members WHERE trip_id = $1 ORDER BY created_at`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.Member, 0)
	for rows.Next() {
		member := &models.Member{}
		if err := rows.StructScan(member); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// MarkLeft flips the membership to 'left' and revokes everything the
// membership justified: all role assignments in the trip and the derived
// channel rows they produced. Explicit channel memberships survive.
func (r *MembershipRepository) MarkLeft(ctx context.Context, tripID, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE trip_members SET status = 'left', updated_at = NOW()
		 WHERE trip_id = $1 AND user_id = $2 AND status = 'active'`,
		tripID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark member as left: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE trip_id = $1 AND user_id = $2`,
		tripID, userID)
	if err != nil {
		return fmt.Errorf("failed to drop role assignments: %w", err)
	}

	if err := syncUserChannels(ctx, tx, tripID, userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member removal: %w", err)
	}

	return nil
}
