package dao

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/profile/entity"
)

// ProfilePostgres implements profile repository for PostgreSQL
type ProfilePostgres struct {
	pool *pgxpool.Pool
}

// NewProfilePostgres creates a new PostgreSQL profile repository
func NewProfilePostgres(pool *pgxpool.Pool) *ProfilePostgres {
	return &ProfilePostgres{pool: pool}
}

// GetByID retrieves a profile by user ID. Returns nil when it does not exist.
func (r *ProfilePostgres) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	var p entity.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, kind, avatar_url, pending_invitations, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.DisplayName, &p.Kind, &p.AvatarURL, &p.PendingInvitations, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify("getting profile", err)
	}
	return &p, nil
}

// Upsert creates or updates the editable fields of a profile. The pending
// invitation list is never overwritten.
func (r *ProfilePostgres) Upsert(ctx context.Context, p *entity.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_profiles (id, display_name, kind, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			kind = EXCLUDED.kind,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.DisplayName, p.Kind, p.AvatarURL, p.UpdatedAt)
	if err != nil {
		return database.Classify("saving profile", err)
	}
	return nil
}
