// sync.go implements channel membership reconciliation. Derived channel
// membership is always recomputed as a set union/difference against the
// current role assignments, never incremented or decremented by count: a user
// can hold multiple roles that separately justify the same channel, so losing
// one role must not revoke access still justified by another.
//
// Every helper here operates on the caller's transaction. Reconciliation runs
// inside the same transaction as the ledger change that triggered it; if it
// fails, the whole change rolls back. Committing a role change without the
// matching channel membership would leave a user with access they should no
// longer have.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/telemetry"
)

// ensureDerivedMemberships inserts a derived channel_members row for every
// channel granted to any role the user currently holds in the trip. Existing
// rows (derived or explicit) are left untouched.
func ensureDerivedMemberships(ctx context.Context, ext sqlx.ExtContext, tripID, userID string) (int64, error) {
	query := `
		INSERT INTO channel_members (channel_id, user_id, derived)
		SELECT DISTINCT crg.channel_id, ra.user_id, TRUE
		FROM role_assignments ra
		JOIN channel_role_grants crg ON crg.role_id = ra.role_id
		WHERE ra.trip_id = $1 AND ra.user_id = $2
		ON CONFLICT (channel_id, user_id) DO NOTHING
	`

	res, err := ext.ExecContext(ctx, query, tripID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure derived channel memberships: %w", err)
	}

	added, _ := res.RowsAffected()
	return added, nil
}

// pruneDerivedMemberships deletes the user's derived rows in the trip that are
// no longer justified by any currently-held role. Explicit rows are never
// pruned.
func pruneDerivedMemberships(ctx context.Context, ext sqlx.ExtContext, tripID, userID string) (int64, error) {
	query := `
		DELETE FROM channel_members cm
		USING channels ch
		WHERE cm.channel_id = ch.id
		  AND ch.trip_id = $1
		  AND cm.user_id = $2
		  AND cm.derived
		  AND NOT EXISTS (
			SELECT 1
			FROM role_assignments ra
			JOIN channel_role_grants crg ON crg.role_id = ra.role_id
			WHERE ra.trip_id = $1
			  AND ra.user_id = cm.user_id
			  AND crg.channel_id = cm.channel_id
		  )
	`

	res, err := ext.ExecContext(ctx, query, tripID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to prune derived channel memberships: %w", err)
	}

	removed, _ := res.RowsAffected()
	return removed, nil
}

// syncUserChannels reconciles one user's derived channel membership in a trip
// after an assignment change.
func syncUserChannels(ctx context.Context, ext sqlx.ExtContext, tripID, userID string) error {
	added, err := ensureDerivedMemberships(ctx, ext, tripID, userID)
	if err != nil {
		return err
	}

	removed, err := pruneDerivedMemberships(ctx, ext, tripID, userID)
	if err != nil {
		return err
	}

	telemetry.ChannelSyncRowsTotal.WithLabelValues("added").Add(float64(added))
	telemetry.ChannelSyncRowsTotal.WithLabelValues("removed").Add(float64(removed))
	return nil
}

// syncUsersChannels reconciles several users at once, used when a role or a
// channel grant changes and every holder of the role must be re-evaluated.
func syncUsersChannels(ctx context.Context, ext sqlx.ExtContext, tripID string, userIDs []string) error {
	for _, userID := range userIDs {
		if err := syncUserChannels(ctx, ext, tripID, userID); err != nil {
			return err
		}
	}
	return nil
}

// roleHolders returns the user IDs currently assigned the role. Callers that
// are about to delete the role or a grant must collect holders first so the
// affected users can be re-synced afterwards.
func roleHolders(ctx context.Context, ext sqlx.ExtContext, roleID string) ([]string, error) {
	rows, err := ext.QueryxContext(ctx, `SELECT user_id FROM role_assignments WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role holder: %w", err)
		}
		users = append(users, id)
	}

	return users, rows.Err()
}
