package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/gigfinder/internal/domain/gig/entity"
	"github.com/vadim/gigfinder/internal/domain/gig/service"
	"github.com/vadim/gigfinder/internal/httpx/response"
)

// GigService defines the interface for gig operations
type GigService interface {
	Create(ctx context.Context, venueManagerID string, in service.CreateInput) (*entity.Gig, error)
	Get(ctx context.Context, id string) (*entity.Gig, error)
	ListByVenueManager(ctx context.Context, venueManagerID string) ([]entity.Gig, error)
}

// GigHandler handles HTTP requests for gigs
type GigHandler struct {
	gigs   GigService
	logger *slog.Logger
}

// NewGigHandler creates a new gig handler
func NewGigHandler(gigs GigService, logger *slog.Logger) *GigHandler {
	return &GigHandler{gigs: gigs, logger: logger}
}

// RegisterRoutes registers gig routes
func (h *GigHandler) RegisterRoutes(r chi.Router) {
	r.Route("/gigs", func(r chi.Router) {
		r.Post("/", h.Create())
		r.Get("/", h.ListMine())
		r.Get("/{gigID}", h.Get())
	})
}

// CreateGigRequest represents the request body for posting a gig
type CreateGigRequest struct {
	Title       string   `json:"title"`
	VenueName   string   `json:"venue_name"`
	Date        string   `json:"date"` // RFC3339 or YYYY-MM-DD
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	FeeCents    *int64   `json:"fee_cents,omitempty"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
}

// Create handles POST /gigs
func (h *GigHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req CreateGigRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			response.BadRequest(w, "invalid date, use RFC3339 or YYYY-MM-DD")
			return
		}

		gig, err := h.gigs.Create(r.Context(), actor, service.CreateInput{
			Title:       req.Title,
			VenueName:   req.VenueName,
			Date:        date,
			Description: req.Description,
			Genres:      req.Genres,
			FeeCents:    req.FeeCents,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
		})
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.Created(w, gig)
	}
}

// Get handles GET /gigs/{gigID}
func (h *GigHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorID(w, r); !ok {
			return
		}

		gig, err := h.gigs.Get(r.Context(), chi.URLParam(r, "gigID"))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, gig)
	}
}

// ListGigsResponse represents the response for listing gigs
type ListGigsResponse struct {
	Gigs []entity.Gig `json:"gigs"`
}

// ListMine handles GET /gigs, the gigs posted by the actor
func (h *GigHandler) ListMine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		gigs, err := h.gigs.ListByVenueManager(r.Context(), actor)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}
		if gigs == nil {
			gigs = []entity.Gig{}
		}

		response.OK(w, ListGigsResponse{Gigs: gigs})
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
