package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
	"github.com/vadim/gigfinder/internal/domain/band/entity"
)

// memStore is an in-memory stand-in for the band tables
type memStore struct {
	mu           sync.Mutex
	bands        map[string]entity.Band
	members      map[string]map[string]entity.Member
	invitations  map[string]entity.Invitation
	applications map[string]entity.Application
	pending      map[string][]string

	memberAdds int
	// lostCommits makes Accept apply its effects and then report a
	// transient failure, as when a commit succeeds but the reply is lost
	lostCommits int
}

func newMemStore() *memStore {
	return &memStore{
		bands:        make(map[string]entity.Band),
		members:      make(map[string]map[string]entity.Member),
		invitations:  make(map[string]entity.Invitation),
		applications: make(map[string]entity.Application),
		pending:      make(map[string][]string),
	}
}

func (m *memStore) addMemberLocked(member entity.Member) {
	if m.members[member.BandID] == nil {
		m.members[member.BandID] = make(map[string]entity.Member)
	}
	if _, ok := m.members[member.BandID][member.UserID]; ok {
		return
	}
	m.members[member.BandID][member.UserID] = member
	m.memberAdds++
}

func (m *memStore) removePendingLocked(userID, id string) {
	list := m.pending[userID][:0]
	for _, p := range m.pending[userID] {
		if p != id {
			list = append(list, p)
		}
	}
	m.pending[userID] = list
}

func (m *memStore) setStatusLocked(id string, status entity.Status, at time.Time) error {
	inv, ok := m.invitations[id]
	if !ok {
		return entity.ErrInvitationNotFound
	}
	switch inv.Status {
	case status:
		return nil
	case entity.StatusPending:
	default:
		return entity.ErrNotPending
	}
	inv.Status = status
	inv.UpdatedAt = at
	m.invitations[id] = inv
	return nil
}

type fakeBands struct{ *memStore }

func (f fakeBands) Create(_ context.Context, band *entity.Band, founder entity.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bands[band.ID] = *band
	f.addMemberLocked(founder)
	return nil
}

func (f fakeBands) GetByID(_ context.Context, id string) (*entity.Band, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bands[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f fakeBands) SetAvatar(_ context.Context, bandID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bands[bandID]
	if !ok {
		return entity.ErrBandNotFound
	}
	b.AvatarURL = url
	f.bands[bandID] = b
	return nil
}

func (f fakeBands) GetMember(_ context.Context, bandID, userID string) (*entity.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[bandID][userID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f fakeBands) ListMembers(_ context.Context, bandID string) ([]entity.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Member
	for _, m := range f.members[bandID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeInvitations struct{ *memStore }

func (f fakeInvitations) Create(_ context.Context, inv *entity.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invitations[inv.ID] = *inv
	f.pending[inv.UserID] = append(f.pending[inv.UserID], inv.ID)
	return nil
}

func (f fakeInvitations) GetByID(_ context.Context, id string) (*entity.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (f fakeInvitations) ListPendingByUser(_ context.Context, userID string) ([]entity.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Invitation
	for _, inv := range f.invitations {
		if inv.UserID == userID && inv.Status == entity.StatusPending {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f fakeInvitations) Accept(_ context.Context, inv *entity.Invitation, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.invitations[inv.ID]
	if !ok {
		return entity.ErrInvitationNotFound
	}
	if stored.Status != entity.StatusPending && stored.Status != entity.StatusAccepted {
		return entity.ErrNotPending
	}
	f.addMemberLocked(inv.Member(at))
	if err := f.setStatusLocked(inv.ID, entity.StatusAccepted, at); err != nil {
		return err
	}
	f.removePendingLocked(inv.UserID, inv.ID)

	if f.lostCommits > 0 {
		f.lostCommits--
		return apperr.Transient("committing acceptance", errors.New("connection reset by peer"))
	}
	return nil
}

func (f fakeInvitations) Decline(_ context.Context, inv *entity.Invitation, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setStatusLocked(inv.ID, entity.StatusDeclined, at); err != nil {
		return err
	}
	f.removePendingLocked(inv.UserID, inv.ID)
	return nil
}

func (f fakeInvitations) ExpirePending(_ context.Context, now time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, inv := range f.invitations {
		if n == limit {
			break
		}
		if inv.Status == entity.StatusPending && now.After(inv.ExpiresAt) {
			inv.Status = entity.StatusExpired
			f.invitations[id] = inv
			f.removePendingLocked(inv.UserID, id)
			n++
		}
	}
	return n, nil
}

type fakeApplications struct{ *memStore }

func (f fakeApplications) Create(_ context.Context, app *entity.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applications[app.ID] = *app
	return nil
}

func (f fakeApplications) ListPendingByUser(_ context.Context, userID string) ([]entity.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Application
	for _, app := range f.applications {
		if app.UserID == userID && app.Status == entity.StatusPending {
			out = append(out, app)
		}
	}
	return out, nil
}

func (f fakeApplications) ExpirePending(_ context.Context, now time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, app := range f.applications {
		if n == limit {
			break
		}
		if app.Status == entity.StatusPending && now.After(app.ExpiresAt) {
			app.Status = entity.StatusExpired
			f.applications[id] = app
			n++
		}
	}
	return n, nil
}
