package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/band/entity"
)

const invitationColumns = `
	id, band_id, band_name, user_id, invited_by, role, instruments, message,
	status, created_at, expires_at, updated_at`

// InvitationPostgres implements invitation repository for PostgreSQL
type InvitationPostgres struct {
	pool *pgxpool.Pool
}

// NewInvitationPostgres creates a new PostgreSQL invitation repository
func NewInvitationPostgres(pool *pgxpool.Pool) *InvitationPostgres {
	return &InvitationPostgres{pool: pool}
}

// Create inserts an invitation and adds it to the invitee's pending list
func (r *InvitationPostgres) Create(ctx context.Context, inv *entity.Invitation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO band_invitations (`+invitationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		inv.ID,
		inv.BandID,
		inv.BandName,
		inv.UserID,
		inv.InvitedBy,
		inv.Role,
		nonNil(inv.Instruments),
		inv.Message,
		inv.Status,
		inv.CreatedAt,
		inv.ExpiresAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return database.Classify("creating invitation", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_profiles (id, pending_invitations) VALUES ($1, ARRAY[$2])
		ON CONFLICT (id) DO UPDATE SET
			pending_invitations = array_append(array_remove(user_profiles.pending_invitations, $2), $2),
			updated_at = now()
	`, inv.UserID, inv.ID)
	if err != nil {
		return database.Classify("adding pending invitation", err)
	}

	return database.Classify("committing invitation", tx.Commit(ctx))
}

// GetByID retrieves an invitation by ID. Returns nil when it does not exist.
func (r *InvitationPostgres) GetByID(ctx context.Context, id string) (*entity.Invitation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invitationColumns+` FROM band_invitations WHERE id = $1`, id)
	if err != nil {
		return nil, database.Classify("getting invitation", err)
	}
	defer rows.Close()

	invitations, err := scanInvitations(rows)
	if err != nil || len(invitations) == 0 {
		return nil, err
	}
	return &invitations[0], nil
}

// ListPendingByUser returns the user's pending invitations, newest first,
// regardless of expiry
func (r *InvitationPostgres) ListPendingByUser(ctx context.Context, userID string) ([]entity.Invitation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM band_invitations
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, database.Classify("querying invitations", err)
	}
	defer rows.Close()

	return scanInvitations(rows)
}

// Accept applies the acceptance side effects in one transaction, in order:
// membership, invitation status, the invitee's pending list. Every step is
// idempotent, so running Accept again after a commit of unknown outcome
// changes nothing. Returns entity.ErrNotPending when the invitation was
// declined in the meantime.
func (r *InvitationPostgres) Accept(ctx context.Context, inv *entity.Invitation, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertMember(ctx, tx, inv.Member(at)); err != nil {
		return err
	}

	if err := setStatus(ctx, tx, inv.ID, entity.StatusAccepted, at); err != nil {
		return err
	}

	if err := removePending(ctx, tx, inv.UserID, inv.ID); err != nil {
		return err
	}

	return database.Classify("committing acceptance", tx.Commit(ctx))
}

// Decline marks the invitation declined and drops it from the pending list
func (r *InvitationPostgres) Decline(ctx context.Context, inv *entity.Invitation, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := setStatus(ctx, tx, inv.ID, entity.StatusDeclined, at); err != nil {
		return err
	}

	if err := removePending(ctx, tx, inv.UserID, inv.ID); err != nil {
		return err
	}

	return database.Classify("committing decline", tx.Commit(ctx))
}

// ExpirePending stores the expired status on up to limit pending
// invitations past their expiry and returns how many changed
func (r *InvitationPostgres) ExpirePending(ctx context.Context, now time.Time, limit int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE band_invitations SET status = 'expired', updated_at = $1
		WHERE id IN (
			SELECT id FROM band_invitations
			WHERE status = 'pending' AND expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
		RETURNING id, user_id
	`, now, limit)
	if err != nil {
		return 0, database.Classify("expiring invitations", err)
	}

	type expired struct{ id, userID string }
	var reaped []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.userID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning expired invitation: %w", err)
		}
		reaped = append(reaped, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, database.Classify("iterating expired invitations", err)
	}

	for _, e := range reaped {
		if err := removePending(ctx, tx, e.userID, e.id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, database.Classify("committing expiry", err)
	}
	return len(reaped), nil
}

// setStatus moves a pending invitation to status. Repeating the same
// transition is a no-op; any other current status is ErrNotPending.
func setStatus(ctx context.Context, tx pgx.Tx, id string, status entity.Status, at time.Time) error {
	var current entity.Status
	err := tx.QueryRow(ctx, `SELECT status FROM band_invitations WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ErrInvitationNotFound
	}
	if err != nil {
		return database.Classify("locking invitation", err)
	}

	switch current {
	case status:
		return nil
	case entity.StatusPending:
	default:
		return entity.ErrNotPending
	}

	_, err = tx.Exec(ctx, `UPDATE band_invitations SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return database.Classify("updating invitation status", err)
	}
	return nil
}

func removePending(ctx context.Context, tx pgx.Tx, userID, invitationID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE user_profiles SET
			pending_invitations = array_remove(pending_invitations, $2),
			updated_at = now()
		WHERE id = $1
	`, userID, invitationID)
	if err != nil {
		return database.Classify("removing pending invitation", err)
	}
	return nil
}

func scanInvitations(rows pgx.Rows) ([]entity.Invitation, error) {
	var invitations []entity.Invitation
	for rows.Next() {
		var inv entity.Invitation
		err := rows.Scan(
			&inv.ID,
			&inv.BandID,
			&inv.BandName,
			&inv.UserID,
			&inv.InvitedBy,
			&inv.Role,
			&inv.Instruments,
			&inv.Message,
			&inv.Status,
			&inv.CreatedAt,
			&inv.ExpiresAt,
			&inv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, database.Classify("iterating invitations", rows.Err())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
