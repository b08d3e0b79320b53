// channel_repository.go implements ChannelRepository: channel CRUD, the
// role-to-channel grant map, explicit membership, and the four privileged
// lookup queries the authorization evaluator unions over. Each lookup is a
// single index-backed EXISTS query so the evaluator stays cheap on the
// message-send hot path.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
	"github.com/chravel/chravel-backend/pkg/slug"
)

// ErrCrossTripGrant is returned when a grant would link a role and a channel
// belonging to different trips. This is an integrity violation and never
// mutates state.
var ErrCrossTripGrant = errors.New("role and channel belong to different trips")

// ChannelRepository handles database operations for channels
type ChannelRepository struct {
	db *sqlx.DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *sqlx.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts a channel, returning the existing one on a slug collision
// within the trip. The boolean result reports whether a new row was created.
func (r *ChannelRepository) Create(ctx context.Context, tripID, name string, kind models.ChannelKind) (*models.Channel, bool, error) {
	chSlug := slug.Make(name)
	if chSlug == "" {
		return nil, false, fmt.Errorf("channel name %q produces an empty slug", name)
	}

	ch := &models.Channel{TripID: tripID, Name: name, Slug: chSlug, Kind: kind}
	created := true
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO channels (trip_id, name, slug, kind) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (trip_id, slug) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		tripID, name, chSlug, kind).Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
	if err == sql.ErrNoRows {
		created = false
		err = r.db.QueryRowxContext(ctx,
			`SELECT id, trip_id, name, slug, kind, source_role_id, created_at, updated_at
			 FROM channels WHERE trip_id = $1 AND slug = $2`,
			tripID, chSlug).StructScan(ch)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create channel: %w", err)
	}

	return ch, created, nil
}

// GetByID retrieves a channel by ID
func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	ch := &models.Channel{}
	err := r.db.QueryRowxContext(ctx,
		`SELECT id, trip_id, name, slug, kind, source_role_id, created_at, updated_at
		 FROM channels WHERE id = $1`,
		id).StructScan(ch)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return ch, nil
}

// ListByTrip retrieves all channels of a trip
func (r *ChannelRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.Channel, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, trip_id, name, slug, kind, source_role_id, created_at, updated_at
		 FROM channels WHERE trip_id = $1 ORDER BY slug`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]*models.Channel, 0)
	for rows.Next() {
		ch := &models.Channel{}
		if err := rows.StructScan(ch); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

// Delete removes a channel; grants and membership rows cascade
func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	return nil
}

// GrantRole links a role to a channel and materializes membership for every
// current holder of the role, in one transaction. The grant is rejected with
// ErrCrossTripGrant before any mutation when the role and channel belong to
// different trips.
func (r *ChannelRepository) GrantRole(ctx context.Context, channelID, roleID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tripID, err := scopeCheck(ctx, tx, channelID, roleID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO channel_role_grants (channel_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (channel_id, role_id) DO NOTHING`,
		channelID, roleID)
	if err != nil {
		return fmt.Errorf("failed to grant role to channel: %w", err)
	}

	holders, err := roleHolders(ctx, tx, roleID)
	if err != nil {
		return err
	}
	if err := syncUsersChannels(ctx, tx, tripID, holders); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit channel grant: %w", err)
	}

	return nil
}

// RevokeRole removes a role's grant and prunes derived membership no other
// role of each holder still justifies, in one transaction.
func (r *ChannelRepository) RevokeRole(ctx context.Context, channelID, roleID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tripID, err := scopeCheck(ctx, tx, channelID, roleID)
	if err != nil {
		return err
	}

	holders, err := roleHolders(ctx, tx, roleID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM channel_role_grants WHERE channel_id = $1 AND role_id = $2`,
		channelID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role from channel: %w", err)
	}

	if err := syncUsersChannels(ctx, tx, tripID, holders); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit channel revoke: %w", err)
	}

	return nil
}

// scopeCheck verifies the role and channel exist and share a trip, returning
// the trip ID.
func scopeCheck(ctx context.Context, ext sqlx.ExtContext, channelID, roleID string) (string, error) {
	var channelTrip, roleTrip string
	err := ext.QueryRowxContext(ctx,
		`SELECT ch.trip_id, ro.trip_id
		 FROM channels ch, roles ro
		 WHERE ch.id = $1 AND ro.id = $2`,
		channelID, roleID).Scan(&channelTrip, &roleTrip)
	if err == sql.ErrNoRows {
		return "", sql.ErrNoRows
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve grant scope: %w", err)
	}
	if channelTrip != roleTrip {
		return "", ErrCrossTripGrant
	}

	return channelTrip, nil
}

// AddExplicitMember adds a direct (channel, user) membership row bypassing
// role derivation. Upgrading a derived row to explicit pins the membership so
// later role changes cannot revoke it.
func (r *ChannelRepository) AddExplicitMember(ctx context.Context, channelID, userID string) error {
	query := `
		INSERT INTO channel_members (channel_id, user_id, derived)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET derived = FALSE
	`

	if _, err := r.db.ExecContext(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("failed to add explicit channel member: %w", err)
	}

	return nil
}

// RemoveExplicitMember deletes a non-derived membership row. Derived rows are
// owned by the synchronizer and are not removable here.
func (r *ChannelRepository) RemoveExplicitMember(ctx context.Context, channelID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2 AND NOT derived`,
		channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove explicit channel member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ListMembers retrieves all membership rows of a channel
func (r *ChannelRepository) ListMembers(ctx context.Context, channelID string) ([]*models.ChannelMember, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT channel_id, user_id, derived, created_at
		 FROM channel_members WHERE channel_id = $1 ORDER BY created_at`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.ChannelMember, 0)
	for rows.Next() {
		m := &models.ChannelMember{}
		if err := rows.StructScan(m); err != nil {
			return nil, fmt.Errorf("failed to scan channel member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// ListForUser retrieves the channels a user can see in a trip through any
// membership row (derived or explicit). Used by the channel listing surface.
func (r *ChannelRepository) ListForUser(ctx context.Context, tripID, userID string) ([]*models.Channel, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT ch.id, ch.trip_id, ch.name, ch.slug, ch.kind, ch.source_role_id, ch.created_at, ch.updated_at
		 FROM channels ch
		 JOIN channel_members cm ON cm.channel_id = ch.id
		 WHERE ch.trip_id = $1 AND cm.user_id = $2
		 ORDER BY ch.slug`,
		tripID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user channels: %w", err)
	}
	defer rows.Close()

	channels := make([]*models.Channel, 0)
	for rows.Next() {
		ch := &models.Channel{}
		if err := rows.StructScan(ch); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

// ---------------------------------------------------------------------------
// Evaluator lookups. Each is one EXISTS query over an indexed path; the
// evaluator ORs them with short-circuiting. None of them consults another
// evaluated surface, so evaluation cannot recurse.
// ---------------------------------------------------------------------------

// UserHoldsGrantedRole reports whether any of the user's role assignments
// (primary or secondary) has a grant to the channel.
func (r *ChannelRepository) UserHoldsGrantedRole(ctx context.Context, channelID, userID string) (bool, error) {
	var held bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM channel_role_grants crg
			JOIN role_assignments ra ON ra.role_id = crg.role_id
			WHERE crg.channel_id = $1 AND ra.user_id = $2
		 )`,
		channelID, userID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("failed to check role grant access: %w", err)
	}

	return held, nil
}

// UserIsTripAdmin reports whether the user holds any admin grant in the
// channel's trip.
func (r *ChannelRepository) UserIsTripAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	var held bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM admin_grants ag
			JOIN channels ch ON ch.trip_id = ag.trip_id
			WHERE ch.id = $1 AND ag.user_id = $2
		 )`,
		channelID, userID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("failed to check admin access: %w", err)
	}

	return held, nil
}

// UserIsTripCreator reports whether the user created the channel's trip.
func (r *ChannelRepository) UserIsTripCreator(ctx context.Context, channelID, userID string) (bool, error) {
	var held bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM trips t
			JOIN channels ch ON ch.trip_id = t.id
			WHERE ch.id = $1 AND t.creator_id = $2
		 )`,
		channelID, userID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("failed to check creator access: %w", err)
	}

	return held, nil
}

// UserIsExplicitMember reports whether the user has a non-derived membership
// row for the channel.
func (r *ChannelRepository) UserIsExplicitMember(ctx context.Context, channelID, userID string) (bool, error) {
	var held bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM channel_members
			WHERE channel_id = $1 AND user_id = $2 AND NOT derived
		 )`,
		channelID, userID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("failed to check explicit membership: %w", err)
	}

	return held, nil
}
