package entity

import (
	"strings"
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
)

// Domain errors for profiles
var (
	ErrProfileNotFound = apperr.NotFound("profile not found")
	ErrInvalidKind     = apperr.Invalid("kind", "must be musician or venue_manager")
)

// Kind is what a user is on the platform
type Kind string

const (
	KindMusician     Kind = "musician"
	KindVenueManager Kind = "venue_manager"
)

// ParseKind parses a string into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.TrimSpace(s)) {
	case KindMusician:
		return KindMusician, nil
	case KindVenueManager:
		return KindVenueManager, nil
	default:
		return "", ErrInvalidKind
	}
}

// Profile is a user's public profile
type Profile struct {
	ID                 string    `json:"id"`
	DisplayName        string    `json:"display_name"`
	Kind               Kind      `json:"kind"`
	AvatarURL          string    `json:"avatar_url,omitempty"`
	PendingInvitations []string  `json:"pending_invitations"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
