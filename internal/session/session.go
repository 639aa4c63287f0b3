// Package session models the signed-in state of a request.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadim/gigfinder/internal/domain/profile/entity"
)

// State is where a session is in its lifecycle
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSignedOut:
		return "signed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNotReady          = errors.New("session is not ready")
)

// Session holds the identity of the caller and its profile. The profile is
// nil for a user who has not created one yet.
type Session struct {
	state   State
	userID  string
	profile *entity.Profile
}

// New returns an uninitialized session
func New() *Session {
	return &Session{}
}

// BeginLoading moves an uninitialized or signed-out session to loading
func (s *Session) BeginLoading(userID string) error {
	if s.state != StateUninitialized && s.state != StateSignedOut {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateLoading)
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidTransition)
	}
	s.state = StateLoading
	s.userID = userID
	s.profile = nil
	return nil
}

// Ready completes loading. profile may be nil.
func (s *Session) Ready(profile *entity.Profile) error {
	if s.state != StateLoading {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateReady)
	}
	s.state = StateReady
	s.profile = profile
	return nil
}

// SignOut drops the identity. Allowed from any state.
func (s *Session) SignOut() {
	s.state = StateSignedOut
	s.userID = ""
	s.profile = nil
}

// State returns the current state
func (s *Session) State() State { return s.state }

// UserID returns the signed-in user, or ErrNotReady
func (s *Session) UserID() (string, error) {
	if s.state != StateReady {
		return "", ErrNotReady
	}
	return s.userID, nil
}

// Profile returns the loaded profile and whether one exists
func (s *Session) Profile() (*entity.Profile, bool) {
	if s.state != StateReady || s.profile == nil {
		return nil, false
	}
	return s.profile, true
}

// ProfileLookup finds a user's profile, returning nil when there is none
type ProfileLookup interface {
	Find(ctx context.Context, userID string) (*entity.Profile, error)
}

// Loader builds ready sessions for verified users
type Loader struct {
	profiles ProfileLookup
}

// NewLoader creates a session loader
func NewLoader(profiles ProfileLookup) *Loader {
	return &Loader{profiles: profiles}
}

// Load runs a session through loading into ready. A failed profile lookup
// leaves the session signed out.
func (l *Loader) Load(ctx context.Context, userID string) (*Session, error) {
	s := New()
	if err := s.BeginLoading(userID); err != nil {
		return nil, err
	}
	profile, err := l.profiles.Find(ctx, userID)
	if err != nil {
		s.SignOut()
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if err := s.Ready(profile); err != nil {
		return nil, err
	}
	return s, nil
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}

// UserID returns the ready user stored in ctx
func UserID(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	id, err := s.UserID()
	return id, err == nil
}
