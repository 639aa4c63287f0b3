package entity

import (
	"strings"
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
)

// Status is the stored lifecycle status of an invitation or application
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"

	// StatusExpired is normally derived at read time. It is only stored when
	// the housekeeping reaper is enabled.
	StatusExpired Status = "expired"
)

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusExpired
}

// effectiveStatus derives expired from a pending status past expiresAt
func effectiveStatus(stored Status, expiresAt, now time.Time) Status {
	if stored == StatusPending && now.After(expiresAt) {
		return StatusExpired
	}
	return stored
}

// Invitation is a band's offer of membership to a user
type Invitation struct {
	ID          string    `json:"id"`
	BandID      string    `json:"band_id"`
	BandName    string    `json:"band_name"`
	UserID      string    `json:"user_id"`
	InvitedBy   string    `json:"invited_by,omitempty"`
	Role        Role      `json:"role"`
	Instruments []string  `json:"instruments"`
	Message     string    `json:"message,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveStatus returns the status as of now, deriving expired
func (i *Invitation) EffectiveStatus(now time.Time) Status {
	return effectiveStatus(i.Status, i.ExpiresAt, now)
}

// IsExpired reports whether the invitation is pending past its expiry
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.EffectiveStatus(now) == StatusExpired
}

// Member returns the membership this invitation grants on acceptance
func (i *Invitation) Member(joinedAt time.Time) Member {
	return Member{
		BandID:      i.BandID,
		UserID:      i.UserID,
		Role:        i.Role,
		Instruments: i.Instruments,
		JoinedAt:    joinedAt,
	}
}

// Application is a user's request to join a band
type Application struct {
	ID          string    `json:"id"`
	BandID      string    `json:"band_id"`
	BandName    string    `json:"band_name"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	Instruments []string  `json:"instruments"`
	Message     string    `json:"message,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveStatus returns the status as of now, deriving expired
func (a *Application) EffectiveStatus(now time.Time) Status {
	return effectiveStatus(a.Status, a.ExpiresAt, now)
}

// Proposal is the shared payload of a new invitation or application
type Proposal struct {
	BandID      string
	UserID      string
	Role        string
	Instruments []string
	Message     string
}

// Normalize trims and validates a proposal
func (p Proposal) Normalize() (Proposal, Role, error) {
	p.BandID = strings.TrimSpace(p.BandID)
	if p.BandID == "" {
		return p, "", apperr.Invalid("band_id", "is required")
	}
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return p, "", apperr.Invalid("user_id", "is required")
	}
	role, err := ParseRole(p.Role)
	if err != nil {
		return p, "", err
	}

	instruments := make([]string, 0, len(p.Instruments))
	for _, inst := range p.Instruments {
		if inst = strings.TrimSpace(inst); inst != "" {
			instruments = append(instruments, inst)
		}
	}
	p.Instruments = instruments
	p.Message = strings.TrimSpace(p.Message)

	return p, role, nil
}
