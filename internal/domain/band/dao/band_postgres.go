package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/band/entity"
)

// BandPostgres implements band and membership storage for PostgreSQL
type BandPostgres struct {
	pool *pgxpool.Pool
}

// NewBandPostgres creates a new PostgreSQL band repository
func NewBandPostgres(pool *pgxpool.Pool) *BandPostgres {
	return &BandPostgres{pool: pool}
}

// Create inserts a band together with its founding member
func (r *BandPostgres) Create(ctx context.Context, band *entity.Band, founder entity.Member) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bands (id, name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, band.ID, band.Name, band.AvatarURL, band.CreatedAt)
	if err != nil {
		return database.Classify("creating band", err)
	}

	if err := upsertMember(ctx, tx, founder); err != nil {
		return err
	}

	return database.Classify("committing band", tx.Commit(ctx))
}

// GetByID retrieves a band by ID. Returns nil when it does not exist.
func (r *BandPostgres) GetByID(ctx context.Context, id string) (*entity.Band, error) {
	var band entity.Band
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, avatar_url, created_at, updated_at FROM bands WHERE id = $1
	`, id).Scan(&band.ID, &band.Name, &band.AvatarURL, &band.CreatedAt, &band.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify("getting band", err)
	}
	return &band, nil
}

// SetAvatar updates the band's avatar URL
func (r *BandPostgres) SetAvatar(ctx context.Context, bandID, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bands SET avatar_url = $2, updated_at = now() WHERE id = $1`, bandID, url)
	if err != nil {
		return database.Classify("updating band avatar", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrBandNotFound
	}
	return nil
}

// GetMember returns a membership. Returns nil when the user is not a member.
func (r *BandPostgres) GetMember(ctx context.Context, bandID, userID string) (*entity.Member, error) {
	var m entity.Member
	err := r.pool.QueryRow(ctx, `
		SELECT band_id, user_id, role, instruments, joined_at
		FROM band_members
		WHERE band_id = $1 AND user_id = $2
	`, bandID, userID).Scan(&m.BandID, &m.UserID, &m.Role, &m.Instruments, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify("getting member", err)
	}
	return &m, nil
}

// ListMembers returns the members of a band, earliest first
func (r *BandPostgres) ListMembers(ctx context.Context, bandID string) ([]entity.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT band_id, user_id, role, instruments, joined_at
		FROM band_members
		WHERE band_id = $1
		ORDER BY joined_at, user_id
	`, bandID)
	if err != nil {
		return nil, database.Classify("querying members", err)
	}
	defer rows.Close()

	var members []entity.Member
	for rows.Next() {
		var m entity.Member
		if err := rows.Scan(&m.BandID, &m.UserID, &m.Role, &m.Instruments, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, database.Classify("iterating members", rows.Err())
}

// upsertMember adds a membership; an existing one is left untouched
func upsertMember(ctx context.Context, tx pgx.Tx, m entity.Member) error {
	instruments := m.Instruments
	if instruments == nil {
		instruments = []string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO band_members (band_id, user_id, role, instruments, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (band_id, user_id) DO NOTHING
	`, m.BandID, m.UserID, m.Role, instruments, m.JoinedAt)
	if err != nil {
		return database.Classify("adding member", err)
	}
	return nil
}
