package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
	"github.com/vadim/gigfinder/internal/domain/band/entity"
	"github.com/vadim/gigfinder/internal/retry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	store *memStore
	clock *fakeClock
	band  *entity.Band
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	svc := New(
		fakeBands{store},
		fakeInvitations{store},
		fakeApplications{store},
		cfg,
		WithClock(clock.Now),
		WithRetryPolicy(retry.Policy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
	)

	band, err := svc.CreateBand(context.Background(), "leader-1", "The Lows", []string{"guitar"})
	if err != nil {
		t.Fatalf("creating band: %v", err)
	}
	return &fixture{svc: svc, store: store, clock: clock, band: band}
}

func (f *fixture) invite(t *testing.T, userID string) *entity.Invitation {
	t.Helper()
	inv, err := f.svc.CreateInvitation(context.Background(), "leader-1", entity.Proposal{
		BandID:      f.band.ID,
		UserID:      userID,
		Role:        "member",
		Instruments: []string{"drums"},
		Message:     "Want to join?",
	})
	if err != nil {
		t.Fatalf("creating invitation: %v", err)
	}
	return inv
}

func TestAcceptInvitationAddsMemberAndClearsPending(t *testing.T) {
	f := newFixture(t, Config{AllowExpiredAccept: true, TTL: 48 * time.Hour})
	inv := f.invite(t, "user-1")

	if got := f.store.pending["user-1"]; len(got) != 1 || got[0] != inv.ID {
		t.Fatalf("expected invitation in pending list, got %v", got)
	}

	accepted, err := f.svc.AcceptInvitation(context.Background(), "user-1", inv.ID)
	if err != nil {
		t.Fatalf("accepting: %v", err)
	}
	if accepted.Status != entity.StatusAccepted {
		t.Errorf("expected accepted, got %s", accepted.Status)
	}

	member := f.store.members[f.band.ID]["user-1"]
	if member.Role != entity.RoleMember || len(member.Instruments) != 1 || member.Instruments[0] != "drums" {
		t.Errorf("unexpected membership %+v", member)
	}
	if len(f.store.pending["user-1"]) != 0 {
		t.Errorf("pending list should be empty, got %v", f.store.pending["user-1"])
	}
	if f.store.invitations[inv.ID].Status != entity.StatusAccepted {
		t.Errorf("stored status should be accepted")
	}
}

func TestAcceptInvitationRetryAddsMemberOnce(t *testing.T) {
	f := newFixture(t, Config{AllowExpiredAccept: true})
	inv := f.invite(t, "user-1")
	f.store.lostCommits = 2

	if _, err := f.svc.AcceptInvitation(context.Background(), "user-1", inv.ID); err != nil {
		t.Fatalf("accepting: %v", err)
	}

	// leader + invitee
	if f.store.memberAdds != 2 {
		t.Errorf("expected member added once, got %d adds", f.store.memberAdds-1)
	}
	if len(f.store.members[f.band.ID]) != 2 {
		t.Errorf("expected 2 members, got %d", len(f.store.members[f.band.ID]))
	}
}

func TestAcceptInvitationNotPending(t *testing.T) {
	f := newFixture(t, Config{AllowExpiredAccept: true})
	ctx := context.Background()

	accepted := f.invite(t, "user-1")
	if _, err := f.svc.AcceptInvitation(ctx, "user-1", accepted.ID); err != nil {
		t.Fatalf("accepting: %v", err)
	}
	declined := f.invite(t, "user-2")
	if _, err := f.svc.DeclineInvitation(ctx, "user-2", declined.ID); err != nil {
		t.Fatalf("declining: %v", err)
	}

	for name, tc := range map[string]struct{ actor, id string }{
		"already accepted": {"user-1", accepted.ID},
		"already declined": {"user-2", declined.ID},
	} {
		t.Run(name, func(t *testing.T) {
			addsBefore := f.store.memberAdds
			_, err := f.svc.AcceptInvitation(ctx, tc.actor, tc.id)
			if !errors.Is(err, apperr.ErrInvalidState) {
				t.Fatalf("expected invalid state, got %v", err)
			}
			if f.store.memberAdds != addsBefore {
				t.Error("membership must not change")
			}
		})
	}

	if _, ok := f.store.members[f.band.ID]["user-2"]; ok {
		t.Error("declined invitee must not become a member")
	}
}

func TestAcceptInvitationChecksPermissionFirst(t *testing.T) {
	f := newFixture(t, Config{AllowExpiredAccept: true})
	inv := f.invite(t, "user-1")

	_, err := f.svc.AcceptInvitation(context.Background(), "user-2", inv.ID)
	if !errors.Is(err, apperr.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if f.store.invitations[inv.ID].Status != entity.StatusPending {
		t.Error("invitation must stay pending")
	}
	if _, ok := f.store.members[f.band.ID]["user-1"]; ok {
		t.Error("membership must not change")
	}

	if _, err := f.svc.DeclineInvitation(context.Background(), "user-2", inv.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Fatalf("expected permission error on decline, got %v", err)
	}
}

func TestAcceptExpiredInvitation(t *testing.T) {
	tests := []struct {
		name       string
		allow      bool
		wantErr    error
		wantMember bool
	}{
		{name: "permissive accepts", allow: true, wantMember: true},
		{name: "strict rejects", allow: false, wantErr: entity.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{AllowExpiredAccept: tt.allow, TTL: time.Hour})
			inv := f.invite(t, "user-1")
			f.clock.Advance(2 * time.Hour)

			_, err := f.svc.AcceptInvitation(context.Background(), "user-1", inv.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil && !errors.Is(err, apperr.ErrInvalidState) {
				t.Errorf("expired accept should be an invalid state, got %v", err)
			}

			_, isMember := f.store.members[f.band.ID]["user-1"]
			if isMember != tt.wantMember {
				t.Errorf("expected member=%v, got %v", tt.wantMember, isMember)
			}
		})
	}
}

func TestDeclineExpiredInvitation(t *testing.T) {
	f := newFixture(t, Config{AllowExpiredAccept: false, TTL: time.Hour})
	inv := f.invite(t, "user-1")
	f.clock.Advance(2 * time.Hour)

	declined, err := f.svc.DeclineInvitation(context.Background(), "user-1", inv.ID)
	if err != nil {
		t.Fatalf("declining: %v", err)
	}
	if declined.Status != entity.StatusDeclined {
		t.Errorf("expected declined, got %s", declined.Status)
	}
	if len(f.store.members[f.band.ID]) != 1 {
		t.Error("decline must not change membership")
	}
}

func TestCreateInvitationRules(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   string
		in      entity.Proposal
		wantErr error
	}{
		{
			name:    "member cannot invite",
			actor:   "user-9",
			in:      entity.Proposal{BandID: f.band.ID, UserID: "user-1", Role: "member"},
			wantErr: entity.ErrNotBandAdmin,
		},
		{
			name:    "unknown band",
			actor:   "leader-1",
			in:      entity.Proposal{BandID: "nope", UserID: "user-1", Role: "member"},
			wantErr: apperr.ErrNotFound,
		},
		{
			name:    "bad role",
			actor:   "leader-1",
			in:      entity.Proposal{BandID: f.band.ID, UserID: "user-1", Role: "roadie"},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "already a member",
			actor:   "leader-1",
			in:      entity.Proposal{BandID: f.band.ID, UserID: "leader-1", Role: "member"},
			wantErr: entity.ErrAlreadyMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInvitation(ctx, tt.actor, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	inv := f.invite(t, "user-1")
	if !inv.ExpiresAt.Equal(inv.CreatedAt.Add(DefaultTTL)) {
		t.Errorf("expected default TTL, got expiry %v for creation %v", inv.ExpiresAt, inv.CreatedAt)
	}
	if inv.BandName != "The Lows" || inv.InvitedBy != "leader-1" {
		t.Errorf("unexpected invitation %+v", inv)
	}
}

func TestCreateApplication(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	app, err := f.svc.CreateApplication(ctx, "user-1", entity.Proposal{
		BandID:      f.band.ID,
		UserID:      "someone-else",
		Role:        "guest",
		Instruments: []string{"sax"},
	})
	if err != nil {
		t.Fatalf("applying: %v", err)
	}
	if app.UserID != "user-1" {
		t.Errorf("application must be filed as the actor, got %s", app.UserID)
	}
	if app.Status != entity.StatusPending {
		t.Errorf("expected pending, got %s", app.Status)
	}

	if _, err := f.svc.CreateApplication(ctx, "leader-1", entity.Proposal{BandID: f.band.ID, Role: "member"}); !errors.Is(err, entity.ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestGetInvitationVisibility(t *testing.T) {
	f := newFixture(t, Config{})
	inv := f.invite(t, "user-1")
	ctx := context.Background()

	for _, actor := range []string{"user-1", "leader-1"} {
		if _, err := f.svc.GetInvitation(ctx, actor, inv.ID); err != nil {
			t.Errorf("%s: unexpected error %v", actor, err)
		}
	}
	if _, err := f.svc.GetInvitation(ctx, "user-2", inv.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("expected permission error, got %v", err)
	}
	if _, err := f.svc.GetInvitation(ctx, "user-1", "missing"); !errors.Is(err, entity.ErrInvitationNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReapExpired(t *testing.T) {
	f := newFixture(t, Config{TTL: time.Hour})
	ctx := context.Background()

	old := f.invite(t, "user-1")
	if _, err := f.svc.CreateApplication(ctx, "user-3", entity.Proposal{BandID: f.band.ID, Role: "member"}); err != nil {
		t.Fatalf("applying: %v", err)
	}
	f.clock.Advance(2 * time.Hour)
	fresh := f.invite(t, "user-2")

	invs, apps, err := f.svc.ReapExpired(ctx, 10)
	if err != nil {
		t.Fatalf("reaping: %v", err)
	}
	if invs != 1 || apps != 1 {
		t.Errorf("expected 1 invitation and 1 application reaped, got %d and %d", invs, apps)
	}
	if f.store.invitations[old.ID].Status != entity.StatusExpired {
		t.Error("old invitation should be expired")
	}
	if f.store.invitations[fresh.ID].Status != entity.StatusPending {
		t.Error("fresh invitation should stay pending")
	}

	if _, err := f.svc.AcceptInvitation(ctx, "user-1", old.ID); !errors.Is(err, entity.ErrNotPending) {
		t.Errorf("reaped invitation cannot be accepted, got %v", err)
	}
}

func TestIsMember(t *testing.T) {
	f := newFixture(t, Config{})

	ok, err := f.svc.IsMember(context.Background(), f.band.ID, "leader-1")
	if err != nil || !ok {
		t.Errorf("expected leader to be a member, got %v %v", ok, err)
	}
	ok, err = f.svc.IsMember(context.Background(), f.band.ID, "user-1")
	if err != nil || ok {
		t.Errorf("expected user-1 not to be a member, got %v %v", ok, err)
	}
}
