package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/gigfinder/internal/domain/profile/entity"
	"github.com/vadim/gigfinder/internal/domain/profile/service"
	"github.com/vadim/gigfinder/internal/httpx/response"
	"github.com/vadim/gigfinder/internal/session"
)

// ProfileService defines the interface for profile updates
type ProfileService interface {
	Update(ctx context.Context, userID string, in service.UpdateInput) (*entity.Profile, error)
}

// ProfileHandler handles HTTP requests for the signed-in user's profile
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(p ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: p, logger: logger}
}

// RegisterRoutes registers profile routes
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.Get())
	r.Put("/profile", h.Update())
}

// Get handles GET /profile. The profile comes from the request session.
func (h *ProfileHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorID(w, r); !ok {
			return
		}
		s, _ := session.FromContext(r.Context())

		profile, ok := s.Profile()
		if !ok {
			response.NotFound(w, entity.ErrProfileNotFound.Error())
			return
		}

		response.OK(w, profile)
	}
}

// UpdateProfileRequest represents the request body for saving a profile
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"` // musician, venue_manager
	AvatarURL   string `json:"avatar_url"`
}

// Update handles PUT /profile
func (h *ProfileHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req UpdateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		profile, err := h.profiles.Update(r.Context(), actor, service.UpdateInput{
			DisplayName: req.DisplayName,
			Kind:        req.Kind,
			AvatarURL:   req.AvatarURL,
		})
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, profile)
	}
}
