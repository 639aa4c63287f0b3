package dao

import (
	"context"
	"time"

	"github.com/vadim/gigfinder/internal/domain/band/entity"
)

// BandRepository defines the interface for band and membership data access.
// Getters return nil, nil when the record does not exist.
type BandRepository interface {
	// Create inserts a band together with its founding member
	Create(ctx context.Context, band *entity.Band, founder entity.Member) error

	GetByID(ctx context.Context, id string) (*entity.Band, error)
	SetAvatar(ctx context.Context, bandID, url string) error
	GetMember(ctx context.Context, bandID, userID string) (*entity.Member, error)
	ListMembers(ctx context.Context, bandID string) ([]entity.Member, error)
}

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	// Create inserts an invitation and adds it to the invitee's pending list
	Create(ctx context.Context, inv *entity.Invitation) error

	GetByID(ctx context.Context, id string) (*entity.Invitation, error)

	// ListPendingByUser returns stored-pending invitations, expired or not
	ListPendingByUser(ctx context.Context, userID string) ([]entity.Invitation, error)

	// Accept adds the membership, stores the accepted status and removes the
	// invitation from the pending list. Safe to repeat.
	Accept(ctx context.Context, inv *entity.Invitation, at time.Time) error

	// Decline stores the declined status and removes the invitation from the
	// pending list. Safe to repeat.
	Decline(ctx context.Context, inv *entity.Invitation, at time.Time) error

	// ExpirePending stores the expired status on pending rows past expiry
	ExpirePending(ctx context.Context, now time.Time, limit int) (int, error)
}

// ApplicationRepository defines the interface for application data access
type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.Application) error
	ListPendingByUser(ctx context.Context, userID string) ([]entity.Application, error)
	ExpirePending(ctx context.Context, now time.Time, limit int) (int, error)
}
