package entity

import (
	"strings"
	"time"
)

// Role is a band member's role
type Role string

const (
	RoleLeader Role = "leader"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleLeader:
		return RoleLeader, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	case RoleGuest:
		return RoleGuest, nil
	default:
		return "", ErrInvalidRole
	}
}

// CanInvite reports whether the role may invite new members
func (r Role) CanInvite() bool {
	return r == RoleLeader || r == RoleAdmin
}

// Band is a group of musicians
type Band struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a user's membership in a band
type Member struct {
	BandID      string    `json:"band_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	Instruments []string  `json:"instruments"`
	JoinedAt    time.Time `json:"joined_at"`
}
