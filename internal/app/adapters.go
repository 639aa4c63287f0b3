package app

import (
	"context"
	"errors"

	gigentity "github.com/vadim/gigfinder/internal/domain/gig/entity"
	gigservice "github.com/vadim/gigfinder/internal/domain/gig/service"
	messagingservice "github.com/vadim/gigfinder/internal/domain/messaging/service"
)

// gigProvider adapts the gig service to messagingservice.GigProvider
type gigProvider struct {
	gigs *gigservice.Service
}

func (p gigProvider) GetGig(ctx context.Context, id string) (*messagingservice.GigInfo, error) {
	gig, err := p.gigs.Get(ctx, id)
	if errors.Is(err, gigentity.ErrGigNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &messagingservice.GigInfo{
		ID:             gig.ID,
		Title:          gig.Title,
		VenueManagerID: gig.VenueManagerID,
	}, nil
}
