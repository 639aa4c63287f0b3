package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/gigfinder/internal/domain/band/entity"
	"github.com/vadim/gigfinder/internal/httpx/response"
)

// BandService defines the interface for band and invitation operations
type BandService interface {
	CreateBand(ctx context.Context, actorID, name string, instruments []string) (*entity.Band, error)
	GetBand(ctx context.Context, id string) (*entity.Band, error)
	ListMembers(ctx context.Context, bandID string) ([]entity.Member, error)
	SetAvatar(ctx context.Context, actorID, bandID, url string) error
	CreateInvitation(ctx context.Context, actorID string, in entity.Proposal) (*entity.Invitation, error)
	CreateApplication(ctx context.Context, actorID string, in entity.Proposal) (*entity.Application, error)
	GetInvitation(ctx context.Context, actorID, id string) (*entity.Invitation, error)
	AcceptInvitation(ctx context.Context, actorID, invitationID string) (*entity.Invitation, error)
	DeclineInvitation(ctx context.Context, actorID, invitationID string) (*entity.Invitation, error)
}

// BandHandler handles HTTP requests for bands, invitations and applications
type BandHandler struct {
	bands  BandService
	logger *slog.Logger
}

// NewBandHandler creates a new band handler
func NewBandHandler(bands BandService, logger *slog.Logger) *BandHandler {
	return &BandHandler{bands: bands, logger: logger}
}

// RegisterRoutes registers band routes
func (h *BandHandler) RegisterRoutes(r chi.Router) {
	r.Route("/bands", func(r chi.Router) {
		r.Post("/", h.Create())
		r.Get("/{bandID}", h.Get())
		r.Put("/{bandID}/avatar", h.SetAvatar())
		r.Post("/{bandID}/invitations", h.Invite())
		r.Post("/{bandID}/applications", h.Apply())
	})
	r.Route("/invitations/{invitationID}", func(r chi.Router) {
		r.Get("/", h.GetInvitation())
		r.Post("/accept", h.Accept())
		r.Post("/decline", h.Decline())
	})
}

// CreateBandRequest represents the request body for creating a band
type CreateBandRequest struct {
	Name        string   `json:"name"`
	Instruments []string `json:"instruments"`
}

// Create handles POST /bands
func (h *BandHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req CreateBandRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		band, err := h.bands.CreateBand(r.Context(), actor, req.Name, req.Instruments)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.Created(w, band)
	}
}

// BandResponse represents a band with its members
type BandResponse struct {
	*entity.Band
	Members []entity.Member `json:"members"`
}

// Get handles GET /bands/{bandID}
func (h *BandHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorID(w, r); !ok {
			return
		}
		bandID := chi.URLParam(r, "bandID")

		band, err := h.bands.GetBand(r.Context(), bandID)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}
		members, err := h.bands.ListMembers(r.Context(), bandID)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}
		if members == nil {
			members = []entity.Member{}
		}

		response.OK(w, BandResponse{Band: band, Members: members})
	}
}

// SetAvatarRequest represents the request body for setting a band avatar
type SetAvatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

// SetAvatar handles PUT /bands/{bandID}/avatar
func (h *BandHandler) SetAvatar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req SetAvatarRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.AvatarURL == "" {
			response.BadRequest(w, "avatar_url is required")
			return
		}

		if err := h.bands.SetAvatar(r.Context(), actor, chi.URLParam(r, "bandID"), req.AvatarURL); err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.NoContent(w)
	}
}

// ProposalRequest represents the request body for an invitation or application
type ProposalRequest struct {
	UserID      string   `json:"user_id,omitempty"` // invitations only
	Role        string   `json:"role"`
	Instruments []string `json:"instruments"`
	Message     string   `json:"message"`
}

func (req ProposalRequest) proposal(bandID string) entity.Proposal {
	return entity.Proposal{
		BandID:      bandID,
		UserID:      req.UserID,
		Role:        req.Role,
		Instruments: req.Instruments,
		Message:     req.Message,
	}
}

// Invite handles POST /bands/{bandID}/invitations
func (h *BandHandler) Invite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req ProposalRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		inv, err := h.bands.CreateInvitation(r.Context(), actor, req.proposal(chi.URLParam(r, "bandID")))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.Created(w, inv)
	}
}

// Apply handles POST /bands/{bandID}/applications
func (h *BandHandler) Apply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req ProposalRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		app, err := h.bands.CreateApplication(r.Context(), actor, req.proposal(chi.URLParam(r, "bandID")))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.Created(w, app)
	}
}

// GetInvitation handles GET /invitations/{invitationID}
func (h *BandHandler) GetInvitation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		inv, err := h.bands.GetInvitation(r.Context(), actor, chi.URLParam(r, "invitationID"))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, inv)
	}
}

// Accept handles POST /invitations/{invitationID}/accept
func (h *BandHandler) Accept() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		inv, err := h.bands.AcceptInvitation(r.Context(), actor, chi.URLParam(r, "invitationID"))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		h.logger.Info("invitation accepted", "invitation_id", inv.ID, "band_id", inv.BandID, "user_id", actor)
		response.OK(w, inv)
	}
}

// Decline handles POST /invitations/{invitationID}/decline
func (h *BandHandler) Decline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		inv, err := h.bands.DeclineInvitation(r.Context(), actor, chi.URLParam(r, "invitationID"))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, inv)
	}
}
