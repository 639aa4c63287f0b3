package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/gig/entity"
)

const gigColumns = `
	id, venue_manager_id, title, venue_name, date, description, genres,
	fee_cents, start_time, end_time, created_at, updated_at`

// GigPostgres implements gig repository for PostgreSQL
type GigPostgres struct {
	pool *pgxpool.Pool
}

// NewGigPostgres creates a new PostgreSQL gig repository
func NewGigPostgres(pool *pgxpool.Pool) *GigPostgres {
	return &GigPostgres{pool: pool}
}

// Create inserts a new gig
func (r *GigPostgres) Create(ctx context.Context, gig *entity.Gig) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gigs (`+gigColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		gig.ID,
		gig.VenueManagerID,
		gig.Title,
		gig.VenueName,
		gig.Date,
		gig.Description,
		gig.Genres,
		gig.FeeCents,
		gig.StartTime,
		gig.EndTime,
		gig.CreatedAt,
		gig.UpdatedAt,
	)
	if err != nil {
		return database.Classify("creating gig", err)
	}
	return nil
}

// GetByID retrieves a gig by ID. Returns nil when it does not exist.
func (r *GigPostgres) GetByID(ctx context.Context, id string) (*entity.Gig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = $1`, id)
	if err != nil {
		return nil, database.Classify("getting gig", err)
	}
	defer rows.Close()

	gigs, err := scanGigs(rows)
	if err != nil || len(gigs) == 0 {
		return nil, err
	}
	return &gigs[0], nil
}

// ListByVenueManager returns a venue manager's gigs, soonest first
func (r *GigPostgres) ListByVenueManager(ctx context.Context, venueManagerID string) ([]entity.Gig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+gigColumns+`
		FROM gigs
		WHERE venue_manager_id = $1
		ORDER BY date, created_at
	`, venueManagerID)
	if err != nil {
		return nil, database.Classify("querying gigs", err)
	}
	defer rows.Close()

	return scanGigs(rows)
}

func scanGigs(rows pgx.Rows) ([]entity.Gig, error) {
	var gigs []entity.Gig
	for rows.Next() {
		var g entity.Gig
		err := rows.Scan(
			&g.ID,
			&g.VenueManagerID,
			&g.Title,
			&g.VenueName,
			&g.Date,
			&g.Description,
			&g.Genres,
			&g.FeeCents,
			&g.StartTime,
			&g.EndTime,
			&g.CreatedAt,
			&g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning gig row: %w", err)
		}
		gigs = append(gigs, g)
	}
	return gigs, database.Classify("iterating gigs", rows.Err())
}
