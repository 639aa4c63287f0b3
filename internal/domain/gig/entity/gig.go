package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vadim/gigfinder/internal/apperr"
)

// Domain errors for gigs
var (
	ErrGigNotFound = apperr.NotFound("gig not found")
)

// MaxTitleLength is the maximum gig title length in characters
const MaxTitleLength = 120

// Gig is a venue's posting for a performance slot
type Gig struct {
	ID             string    `json:"id"`
	VenueManagerID string    `json:"venue_manager_id"`
	Title          string    `json:"title"`
	VenueName      string    `json:"venue_name"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description,omitempty"`
	Genres         []string  `json:"genres"`
	FeeCents       *int64    `json:"fee_cents,omitempty"`
	StartTime      string    `json:"start_time,omitempty"`
	EndTime        string    `json:"end_time,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GigBuilder assembles a Gig and validates it before it is stored.
//
// Required: venue manager, title, venue name, date.
// Optional: description, genres, fee, start and end time ("HH:MM").
type GigBuilder struct {
	gig Gig
}

// NewGigBuilder starts a gig owned by venueManagerID
func NewGigBuilder(venueManagerID string) *GigBuilder {
	return &GigBuilder{gig: Gig{VenueManagerID: strings.TrimSpace(venueManagerID)}}
}

func (b *GigBuilder) Title(title string) *GigBuilder {
	b.gig.Title = strings.TrimSpace(title)
	return b
}

func (b *GigBuilder) VenueName(name string) *GigBuilder {
	b.gig.VenueName = strings.TrimSpace(name)
	return b
}

func (b *GigBuilder) Date(date time.Time) *GigBuilder {
	b.gig.Date = date
	return b
}

func (b *GigBuilder) Description(description string) *GigBuilder {
	b.gig.Description = strings.TrimSpace(description)
	return b
}

// Genres sets the genres, dropping blanks and duplicates
func (b *GigBuilder) Genres(genres ...string) *GigBuilder {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	b.gig.Genres = out
	return b
}

func (b *GigBuilder) FeeCents(fee int64) *GigBuilder {
	b.gig.FeeCents = &fee
	return b
}

func (b *GigBuilder) StartTime(hhmm string) *GigBuilder {
	b.gig.StartTime = strings.TrimSpace(hhmm)
	return b
}

func (b *GigBuilder) EndTime(hhmm string) *GigBuilder {
	b.gig.EndTime = strings.TrimSpace(hhmm)
	return b
}

// Build validates the gig and stamps it with id and now.
// The error is an *apperr.ValidationError naming the first bad field.
func (b *GigBuilder) Build(id string, now time.Time) (*Gig, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	gig := b.gig
	gig.ID = id
	if gig.Genres == nil {
		gig.Genres = []string{}
	}
	gig.CreatedAt = now
	gig.UpdatedAt = now
	return &gig, nil
}

func (b *GigBuilder) validate() error {
	g := b.gig

	switch {
	case g.VenueManagerID == "":
		return apperr.Invalid("venue_manager_id", "is required")
	case g.Title == "":
		return apperr.Invalid("title", "is required")
	case utf8.RuneCountInString(g.Title) > MaxTitleLength:
		return apperr.Invalid("title", "is too long")
	case g.VenueName == "":
		return apperr.Invalid("venue_name", "is required")
	case g.Date.IsZero():
		return apperr.Invalid("date", "is required")
	case g.FeeCents != nil && *g.FeeCents < 0:
		return apperr.Invalid("fee_cents", "cannot be negative")
	}

	start, err := parseClock("start_time", g.StartTime)
	if err != nil {
		return err
	}
	end, err := parseClock("end_time", g.EndTime)
	if err != nil {
		return err
	}
	if g.StartTime != "" && g.EndTime != "" && !end.After(start) {
		return apperr.Invalid("end_time", "must be after start_time")
	}

	return nil
}

func parseClock(field, hhmm string) (time.Time, error) {
	if hhmm == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "must be HH:MM")
	}
	return t, nil
}
