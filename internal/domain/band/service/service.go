package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/gigfinder/internal/apperr"
	"github.com/vadim/gigfinder/internal/domain/band/dao"
	"github.com/vadim/gigfinder/internal/domain/band/entity"
	"github.com/vadim/gigfinder/internal/retry"
)

// Config holds invitation lifecycle settings
type Config struct {
	// AllowExpiredAccept lets a pending invitation past its expiry be
	// accepted. When false such an accept fails with entity.ErrExpired.
	AllowExpiredAccept bool

	// TTL is how long a new invitation or application stays pending
	TTL time.Duration
}

// DefaultTTL is used when Config.TTL is zero
const DefaultTTL = 7 * 24 * time.Hour

// Service handles band membership, invitations and applications
type Service struct {
	bands        dao.BandRepository
	invitations  dao.InvitationRepository
	applications dao.ApplicationRepository
	cfg          Config
	retry        retry.Policy
	now          func() time.Time
	newID        func() string
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetryPolicy overrides the retry policy for transient store errors
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// New creates a new band service
func New(bands dao.BandRepository, invitations dao.InvitationRepository, applications dao.ApplicationRepository, cfg Config, opts ...Option) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	s := &Service{
		bands:        bands,
		invitations:  invitations,
		applications: applications,
		cfg:          cfg,
		retry:        retry.DefaultPolicy,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBand creates a band led by the actor
func (s *Service) CreateBand(ctx context.Context, actorID, name string, instruments []string) (*entity.Band, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}

	now := s.now().UTC()
	band := &entity.Band{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	founder := entity.Member{
		BandID:      band.ID,
		UserID:      actorID,
		Role:        entity.RoleLeader,
		Instruments: instruments,
		JoinedAt:    now,
	}

	if err := s.bands.Create(ctx, band, founder); err != nil {
		return nil, fmt.Errorf("creating band: %w", err)
	}
	return band, nil
}

// GetBand returns a band by ID
func (s *Service) GetBand(ctx context.Context, id string) (*entity.Band, error) {
	band, err := retry.Value(ctx, s.retry, func() (*entity.Band, error) {
		return s.bands.GetByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("getting band: %w", err)
	}
	if band == nil {
		return nil, entity.ErrBandNotFound
	}
	return band, nil
}

// ListMembers returns the members of a band
func (s *Service) ListMembers(ctx context.Context, bandID string) ([]entity.Member, error) {
	if _, err := s.GetBand(ctx, bandID); err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.retry, func() ([]entity.Member, error) {
		return s.bands.ListMembers(ctx, bandID)
	})
}

// IsMember reports whether userID belongs to bandID
func (s *Service) IsMember(ctx context.Context, bandID, userID string) (bool, error) {
	member, err := s.member(ctx, bandID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

func (s *Service) member(ctx context.Context, bandID, userID string) (*entity.Member, error) {
	member, err := retry.Value(ctx, s.retry, func() (*entity.Member, error) {
		return s.bands.GetMember(ctx, bandID, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return member, nil
}

func (s *Service) requireAdmin(ctx context.Context, bandID, actorID string) error {
	member, err := s.member(ctx, bandID, actorID)
	if err != nil {
		return err
	}
	if member == nil || !member.Role.CanInvite() {
		return entity.ErrNotBandAdmin
	}
	return nil
}

// SetAvatar sets the band's avatar. Only a leader or admin may do so.
func (s *Service) SetAvatar(ctx context.Context, actorID, bandID, url string) error {
	if err := s.requireAdmin(ctx, bandID, actorID); err != nil {
		return err
	}
	return retry.Do(ctx, s.retry, func() error {
		return s.bands.SetAvatar(ctx, bandID, url)
	})
}

// CreateInvitation invites a user into the band. Only a band leader or
// admin may invite.
func (s *Service) CreateInvitation(ctx context.Context, actorID string, in entity.Proposal) (*entity.Invitation, error) {
	in, role, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	band, err := s.GetBand(ctx, in.BandID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, band.ID, actorID); err != nil {
		return nil, err
	}

	existing, err := s.member(ctx, band.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, entity.ErrAlreadyMember
	}

	now := s.now().UTC()
	inv := &entity.Invitation{
		ID:          s.newID(),
		BandID:      band.ID,
		BandName:    band.Name,
		UserID:      in.UserID,
		InvitedBy:   actorID,
		Role:        role,
		Instruments: in.Instruments,
		Message:     in.Message,
		Status:      entity.StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
		UpdatedAt:   now,
	}

	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}
	return inv, nil
}

// CreateApplication records the actor's request to join a band
func (s *Service) CreateApplication(ctx context.Context, actorID string, in entity.Proposal) (*entity.Application, error) {
	in.UserID = actorID
	in, role, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	band, err := s.GetBand(ctx, in.BandID)
	if err != nil {
		return nil, err
	}

	existing, err := s.member(ctx, band.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, entity.ErrAlreadyMember
	}

	now := s.now().UTC()
	app := &entity.Application{
		ID:          s.newID(),
		BandID:      band.ID,
		BandName:    band.Name,
		UserID:      in.UserID,
		Role:        role,
		Instruments: in.Instruments,
		Message:     in.Message,
		Status:      entity.StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
		UpdatedAt:   now,
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("creating application: %w", err)
	}
	return app, nil
}

// GetInvitation returns an invitation visible to the actor: the invitee or
// a leader or admin of the inviting band
func (s *Service) GetInvitation(ctx context.Context, actorID, id string) (*entity.Invitation, error) {
	inv, err := s.loadInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.UserID == actorID {
		return inv, nil
	}
	if err := s.requireAdmin(ctx, inv.BandID, actorID); err != nil {
		return nil, entity.ErrNotInvitee
	}
	return inv, nil
}

func (s *Service) loadInvitation(ctx context.Context, id string) (*entity.Invitation, error) {
	inv, err := retry.Value(ctx, s.retry, func() (*entity.Invitation, error) {
		return s.invitations.GetByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	if inv == nil {
		return nil, entity.ErrInvitationNotFound
	}
	return inv, nil
}

// AcceptInvitation accepts a pending invitation addressed to the actor.
//
// On success the invitee joins the band with the proposed role and
// instruments, the invitation is accepted and leaves the invitee's pending
// list. Fails with ErrNotInvitee before touching anything when the actor is
// someone else, and with ErrNotPending when the invitation was already
// answered. Past expiry it fails with ErrExpired unless AllowExpiredAccept
// is set.
func (s *Service) AcceptInvitation(ctx context.Context, actorID, invitationID string) (*entity.Invitation, error) {
	inv, err := s.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != actorID {
		return nil, entity.ErrNotInvitee
	}
	if inv.Status != entity.StatusPending {
		return nil, entity.ErrNotPending
	}

	now := s.now().UTC()
	if inv.IsExpired(now) && !s.cfg.AllowExpiredAccept {
		return nil, entity.ErrExpired
	}

	err = retry.Do(ctx, s.retry, func() error {
		return s.invitations.Accept(ctx, inv, now)
	})
	if err != nil {
		return nil, fmt.Errorf("accepting invitation: %w", err)
	}

	inv.Status = entity.StatusAccepted
	inv.UpdatedAt = now
	return inv, nil
}

// DeclineInvitation declines a pending invitation addressed to the actor.
// Membership is not touched. Expired invitations may always be declined.
func (s *Service) DeclineInvitation(ctx context.Context, actorID, invitationID string) (*entity.Invitation, error) {
	inv, err := s.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != actorID {
		return nil, entity.ErrNotInvitee
	}
	if inv.Status != entity.StatusPending {
		return nil, entity.ErrNotPending
	}

	now := s.now().UTC()
	err = retry.Do(ctx, s.retry, func() error {
		return s.invitations.Decline(ctx, inv, now)
	})
	if err != nil {
		return nil, fmt.Errorf("declining invitation: %w", err)
	}

	inv.Status = entity.StatusDeclined
	inv.UpdatedAt = now
	return inv, nil
}

// ListPendingInvitations returns the user's stored-pending invitations,
// including those past expiry
func (s *Service) ListPendingInvitations(ctx context.Context, userID string) ([]entity.Invitation, error) {
	return retry.Value(ctx, s.retry, func() ([]entity.Invitation, error) {
		return s.invitations.ListPendingByUser(ctx, userID)
	})
}

// ListPendingApplications returns the user's stored-pending applications,
// including those past expiry
func (s *Service) ListPendingApplications(ctx context.Context, userID string) ([]entity.Application, error) {
	return retry.Value(ctx, s.retry, func() ([]entity.Application, error) {
		return s.applications.ListPendingByUser(ctx, userID)
	})
}

// ReapExpired stores the expired status on up to limit pending invitations
// and up to limit pending applications past their expiry
func (s *Service) ReapExpired(ctx context.Context, limit int) (invitations, applications int, err error) {
	now := s.now().UTC()

	invitations, err = s.invitations.ExpirePending(ctx, now, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("expiring invitations: %w", err)
	}
	applications, err = s.applications.ExpirePending(ctx, now, limit)
	if err != nil {
		return invitations, 0, fmt.Errorf("expiring applications: %w", err)
	}
	return invitations, applications, nil
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time {
	return s.now()
}
