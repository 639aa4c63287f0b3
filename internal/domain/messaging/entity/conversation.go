package entity

import (
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
)

// PartyKind identifies which side of a conversation a user is on
type PartyKind string

const (
	PartyVenueManager PartyKind = "venue_manager"
	PartyArtist       PartyKind = "artist"
)

// ParsePartyKind parses a string into a PartyKind
func ParsePartyKind(s string) (PartyKind, error) {
	switch PartyKind(s) {
	case PartyVenueManager, PartyArtist:
		return PartyKind(s), nil
	default:
		return "", ErrInvalidPartyKind
	}
}

// Other returns the opposite party
func (k PartyKind) Other() PartyKind {
	if k == PartyVenueManager {
		return PartyArtist
	}
	return PartyVenueManager
}

// ArtistKind distinguishes solo musicians from bands
type ArtistKind string

const (
	ArtistMusician ArtistKind = "musician"
	ArtistBand     ArtistKind = "band"
)

// ParseArtistKind parses a string into an ArtistKind
func ParseArtistKind(s string) (ArtistKind, error) {
	switch ArtistKind(s) {
	case ArtistMusician, ArtistBand:
		return ArtistKind(s), nil
	default:
		return "", ErrInvalidArtistKind
	}
}

// UnreadCount holds the per-party unread counters of a conversation
type UnreadCount struct {
	VenueManager int `json:"venue_manager"`
	Artist       int `json:"artist"`
}

// For returns the counter of the given party
func (u UnreadCount) For(kind PartyKind) int {
	if kind == PartyVenueManager {
		return u.VenueManager
	}
	return u.Artist
}

// Conversation is a messaging thread scoped to one gig and one artist.
//
// GigTitle, VenueManagerName and ArtistName are snapshots taken when the
// conversation was created. They are not refreshed when the source changes.
type Conversation struct {
	ID                  string      `json:"id"`
	GigID               string      `json:"gig_id"`
	GigTitle            string      `json:"gig_title"`
	VenueManagerID      string      `json:"venue_manager_id"`
	VenueManagerName    string      `json:"venue_manager_name"`
	ArtistID            string      `json:"artist_id"`
	ArtistName          string      `json:"artist_name"`
	ArtistKind          ArtistKind  `json:"artist_kind"`
	LastMessage         string      `json:"last_message,omitempty"`
	LastMessageAt       *time.Time  `json:"last_message_at,omitempty"`
	LastMessageSenderID string      `json:"last_message_sender_id,omitempty"`
	UnreadCount         UnreadCount `json:"unread_count"`
	IsActive            bool        `json:"is_active"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// PartyID returns the id of the given party
func (c *Conversation) PartyID(kind PartyKind) string {
	if kind == PartyVenueManager {
		return c.VenueManagerID
	}
	return c.ArtistID
}

// PartyName returns the display name snapshot of the given party
func (c *Conversation) PartyName(kind PartyKind) string {
	if kind == PartyVenueManager {
		return c.VenueManagerName
	}
	return c.ArtistName
}

// IsParty reports whether id is the given party of the conversation
func (c *Conversation) IsParty(id string, kind PartyKind) bool {
	return id != "" && c.PartyID(kind) == id
}

// ValidateKey checks the identifiers that scope a conversation
func ValidateKey(gigID, artistID, venueManagerID string) error {
	if gigID == "" {
		return apperr.Invalid("gig_id", "is required")
	}
	if artistID == "" {
		return apperr.Invalid("artist_id", "is required")
	}
	if venueManagerID == "" {
		return apperr.Invalid("venue_manager_id", "is required")
	}
	return nil
}
