package service

import (
	"context"
	"fmt"
	"time"

	band "github.com/vadim/gigfinder/internal/domain/band/entity"
	"github.com/vadim/gigfinder/internal/domain/notification/entity"
)

// Source provides a user's stored-pending invitations and applications
type Source interface {
	ListPendingInvitations(ctx context.Context, userID string) ([]band.Invitation, error)
	ListPendingApplications(ctx context.Context, userID string) ([]band.Application, error)
}

// Service aggregates pending notifications
type Service struct {
	source Source
	now    func() time.Time
}

// New creates a new notification service. now may be nil.
func New(source Source, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{source: source, now: now}
}

// LoadPendingNotifications returns the user's pending invitations and
// applications. Expired ones are included and marked as such; expiry is a
// display concern here. Pure read.
func (s *Service) LoadPendingNotifications(ctx context.Context, userID string) (*entity.Pending, error) {
	invitations, err := s.source.ListPendingInvitations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading invitations: %w", err)
	}

	applications, err := s.source.ListPendingApplications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading applications: %w", err)
	}

	now := s.now()
	pending := &entity.Pending{
		Invitations:  make([]entity.InvitationNotice, 0, len(invitations)),
		Applications: make([]entity.ApplicationNotice, 0, len(applications)),
	}
	for _, inv := range invitations {
		pending.Invitations = append(pending.Invitations, entity.InvitationNotice{
			Invitation:      inv,
			EffectiveStatus: inv.EffectiveStatus(now),
		})
	}
	for _, app := range applications {
		pending.Applications = append(pending.Applications, entity.ApplicationNotice{
			Application:     app,
			EffectiveStatus: app.EffectiveStatus(now),
		})
	}

	return pending, nil
}
