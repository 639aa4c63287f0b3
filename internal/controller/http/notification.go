package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/gigfinder/internal/domain/notification/entity"
	"github.com/vadim/gigfinder/internal/httpx/response"
)

// NotificationService loads a user's pending notifications
type NotificationService interface {
	LoadPendingNotifications(ctx context.Context, userID string) (*entity.Pending, error)
}

// NotificationHandler handles HTTP requests for notifications
type NotificationHandler struct {
	notifications NotificationService
	logger        *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(n NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: n, logger: logger}
}

// RegisterRoutes registers notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.List())
}

// List handles GET /notifications
func (h *NotificationHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		pending, err := h.notifications.LoadPendingNotifications(r.Context(), actor)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, pending)
	}
}
