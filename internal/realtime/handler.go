// Package realtime pushes live unread totals and new messages over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
	"github.com/vadim/gigfinder/internal/domain/messaging/unread"
	"github.com/vadim/gigfinder/internal/httpx/response"
	"github.com/vadim/gigfinder/internal/session"
)

// UnreadSubscriber opens live unread totals
type UnreadSubscriber interface {
	SubscribeToTotalUnreadCount(userID string, kind entity.PartyKind, callback func(total int)) (*unread.Subscription, error)
}

// Messaging authorizes the actor and streams conversation messages
type Messaging interface {
	CanActAs(ctx context.Context, actorID, partyID string, kind entity.PartyKind) (bool, error)
	GetConversation(ctx context.Context, actorID, conversationID string) (*entity.Conversation, error)
	GetMessage(ctx context.Context, actorID, conversationID, messageID string) (*entity.Message, error)
	WatchMessages(ctx context.Context, actorID, conversationID, afterID string, fn func(entity.Message)) error
}

// Handler serves the websocket endpoints
type Handler struct {
	unread    UnreadSubscriber
	messaging Messaging
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler creates a realtime handler. checkOrigin may be nil to allow
// same-origin requests only.
func NewHandler(u UnreadSubscriber, m Messaging, checkOrigin func(*http.Request) bool, logger *slog.Logger) *Handler {
	return &Handler{
		unread:    u,
		messaging: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// RegisterRoutes registers websocket routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ws", func(r chi.Router) {
		r.Get("/unread", h.Unread())
		r.Get("/conversations/{conversationID}/messages", h.Messages())
	})
}

// UnreadEvent is pushed whenever the total changes
type UnreadEvent struct {
	Total int `json:"total"`
}

// Unread handles GET /ws/unread?kind=&party_id=
func (h *Handler) Unread() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := session.UserID(r.Context())
		if !ok {
			response.Unauthorized(w, "not signed in")
			return
		}

		kind, err := entity.ParsePartyKind(r.URL.Query().Get("kind"))
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		partyID := r.URL.Query().Get("party_id")
		if partyID == "" {
			partyID = actorID
		}

		allowed, err := h.messaging.CanActAs(r.Context(), actorID, partyID, kind)
		if err != nil {
			h.fail(w, err)
			return
		}
		if !allowed {
			response.Forbidden(w, entity.ErrNotParty.Error())
			return
		}

		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		conn := NewConnection(actorID, ws)
		conn.Start()

		sub, err := h.unread.SubscribeToTotalUnreadCount(partyID, kind, func(total int) {
			payload, _ := json.Marshal(UnreadEvent{Total: total})
			_ = conn.Send(payload)
		})
		if err != nil {
			h.logger.Error("subscribing to unread total", "user_id", partyID, "error", err)
			conn.Close(websocket.CloseInternalServerErr, "subscription failed")
			return
		}
		defer sub.Unsubscribe()

		h.logger.Info("unread stream opened", "connection_id", conn.ID, "party_id", partyID, "kind", kind)
		conn.ReadLoop()
		h.logger.Info("unread stream closed", "connection_id", conn.ID)
	}
}

// Messages handles GET /ws/conversations/{conversationID}/messages?after=
func (h *Handler) Messages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := session.UserID(r.Context())
		if !ok {
			response.Unauthorized(w, "not signed in")
			return
		}
		conversationID := chi.URLParam(r, "conversationID")
		afterID := r.URL.Query().Get("after")

		if _, err := h.messaging.GetConversation(r.Context(), actorID, conversationID); err != nil {
			h.fail(w, err)
			return
		}
		if afterID != "" {
			if _, err := h.messaging.GetMessage(r.Context(), actorID, conversationID, afterID); err != nil {
				h.fail(w, err)
				return
			}
		}

		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		conn := NewConnection(actorID, ws)
		conn.Start()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			defer conn.Close(websocket.CloseNormalClosure, "")
			err := h.messaging.WatchMessages(ctx, actorID, conversationID, afterID, func(msg entity.Message) {
				payload, _ := json.Marshal(msg)
				_ = conn.Send(payload)
			})
			if err != nil {
				h.logger.Error("watching messages", "conversation_id", conversationID, "error", err)
			}
		}()

		conn.ReadLoop()
		cancel()
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if code := response.Fail(w, err); code >= http.StatusInternalServerError {
		h.logger.Error("realtime request failed", "error", err)
	}
}
