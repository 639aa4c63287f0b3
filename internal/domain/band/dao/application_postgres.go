package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/band/entity"
)

const applicationColumns = `
	id, band_id, band_name, user_id, role, instruments, message,
	status, created_at, expires_at, updated_at`

// ApplicationPostgres implements application repository for PostgreSQL
type ApplicationPostgres struct {
	pool *pgxpool.Pool
}

// NewApplicationPostgres creates a new PostgreSQL application repository
func NewApplicationPostgres(pool *pgxpool.Pool) *ApplicationPostgres {
	return &ApplicationPostgres{pool: pool}
}

// Create inserts an application
func (r *ApplicationPostgres) Create(ctx context.Context, app *entity.Application) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO band_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		app.ID,
		app.BandID,
		app.BandName,
		app.UserID,
		app.Role,
		nonNil(app.Instruments),
		app.Message,
		app.Status,
		app.CreatedAt,
		app.ExpiresAt,
		app.UpdatedAt,
	)
	if err != nil {
		return database.Classify("creating application", err)
	}
	return nil
}

// ListPendingByUser returns the user's pending applications, newest first,
// regardless of expiry
func (r *ApplicationPostgres) ListPendingByUser(ctx context.Context, userID string) ([]entity.Application, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM band_applications
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, database.Classify("querying applications", err)
	}
	defer rows.Close()

	return scanApplications(rows)
}

// ExpirePending stores the expired status on up to limit pending
// applications past their expiry and returns how many changed
func (r *ApplicationPostgres) ExpirePending(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE band_applications SET status = 'expired', updated_at = $1
		WHERE id IN (
			SELECT id FROM band_applications
			WHERE status = 'pending' AND expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, now, limit)
	if err != nil {
		return 0, database.Classify("expiring applications", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanApplications(rows pgx.Rows) ([]entity.Application, error) {
	var applications []entity.Application
	for rows.Next() {
		var app entity.Application
		err := rows.Scan(
			&app.ID,
			&app.BandID,
			&app.BandName,
			&app.UserID,
			&app.Role,
			&app.Instruments,
			&app.Message,
			&app.Status,
			&app.CreatedAt,
			&app.ExpiresAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning application row: %w", err)
		}
		applications = append(applications, app)
	}
	return applications, database.Classify("iterating applications", rows.Err())
}
