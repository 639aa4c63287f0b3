package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
	"github.com/vadim/gigfinder/internal/domain/profile/entity"
	"github.com/vadim/gigfinder/internal/retry"
)

// Repository defines the interface for profile storage.
// GetByID returns nil, nil when the profile does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	Upsert(ctx context.Context, p *entity.Profile) error
}

// Service handles user profiles
type Service struct {
	repo Repository
	now  func() time.Time
}

// New creates a new profile service
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Find returns the user's profile, or nil when the user has none yet
func (s *Service) Find(ctx context.Context, userID string) (*entity.Profile, error) {
	p, err := retry.Value(ctx, retry.DefaultPolicy, func() (*entity.Profile, error) {
		return s.repo.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// UpdateInput represents input for saving a profile. Empty fields keep
// their current value.
type UpdateInput struct {
	DisplayName string
	Kind        string
	AvatarURL   string
}

// Update creates or updates the user's profile
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*entity.Profile, error) {
	current, err := s.Find(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &entity.Profile{ID: userID, Kind: entity.KindMusician, PendingInvitations: []string{}}
	if current != nil {
		p = current
	}

	if name := strings.TrimSpace(in.DisplayName); name != "" {
		p.DisplayName = name
	}
	if in.Kind != "" {
		kind, err := entity.ParseKind(in.Kind)
		if err != nil {
			return nil, err
		}
		p.Kind = kind
	}
	if in.AvatarURL != "" {
		p.AvatarURL = in.AvatarURL
	}
	if p.DisplayName == "" {
		return nil, apperr.Invalid("display_name", "is required")
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return p, nil
}
