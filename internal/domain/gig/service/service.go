package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/gigfinder/internal/domain/gig/entity"
	"github.com/vadim/gigfinder/internal/retry"
)

// Repository defines the interface for gig storage.
// GetByID returns nil, nil when the gig does not exist.
type Repository interface {
	Create(ctx context.Context, gig *entity.Gig) error
	GetByID(ctx context.Context, id string) (*entity.Gig, error)
	ListByVenueManager(ctx context.Context, venueManagerID string) ([]entity.Gig, error)
}

// Service handles gig business logic
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// New creates a new gig service
func New(repo Repository) *Service {
	return &Service{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateInput represents input for posting a gig. Pointer and empty fields
// are optional.
type CreateInput struct {
	Title       string
	VenueName   string
	Date        time.Time
	Description string
	Genres      []string
	FeeCents    *int64
	StartTime   string
	EndTime     string
}

// Create posts a gig owned by the acting venue manager
func (s *Service) Create(ctx context.Context, venueManagerID string, in CreateInput) (*entity.Gig, error) {
	b := entity.NewGigBuilder(venueManagerID).
		Title(in.Title).
		VenueName(in.VenueName).
		Date(in.Date).
		Description(in.Description).
		Genres(in.Genres...).
		StartTime(in.StartTime).
		EndTime(in.EndTime)
	if in.FeeCents != nil {
		b.FeeCents(*in.FeeCents)
	}

	gig, err := b.Build(s.newID(), s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, gig); err != nil {
		return nil, fmt.Errorf("creating gig: %w", err)
	}
	return gig, nil
}

// Get returns a gig by ID
func (s *Service) Get(ctx context.Context, id string) (*entity.Gig, error) {
	gig, err := retry.Value(ctx, retry.DefaultPolicy, func() (*entity.Gig, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("getting gig: %w", err)
	}
	if gig == nil {
		return nil, entity.ErrGigNotFound
	}
	return gig, nil
}

// ListByVenueManager returns the gigs posted by a venue manager
func (s *Service) ListByVenueManager(ctx context.Context, venueManagerID string) ([]entity.Gig, error) {
	return retry.Value(ctx, retry.DefaultPolicy, func() ([]entity.Gig, error) {
		return s.repo.ListByVenueManager(ctx, venueManagerID)
	})
}
