package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
	"github.com/vadim/gigfinder/internal/domain/messaging/policy"
	"github.com/vadim/gigfinder/internal/domain/messaging/service"
	"github.com/vadim/gigfinder/internal/httpx/response"
)

// MessagingPolicy defines the interface for messaging operations
type MessagingPolicy interface {
	CanActAs(ctx context.Context, actorID, partyID string, kind entity.PartyKind) (bool, error)
	OpenConversation(ctx context.Context, actorID string, in service.GetOrCreateInput) (*entity.Conversation, error)
	OpenForAcceptedApplication(ctx context.Context, actorID string, in service.OpenForAcceptedApplicationInput) (*entity.Conversation, error)
	GetConversation(ctx context.Context, actorID, conversationID string) (*entity.Conversation, error)
	ListConversations(ctx context.Context, actorID string, in policy.ListConversationsInput) ([]entity.Conversation, error)
	SendMessage(ctx context.Context, actorID string, in policy.SendMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, actorID, conversationID string, kind entity.PartyKind) error
	ListMessages(ctx context.Context, actorID, conversationID string) ([]entity.Message, error)
}

// UnreadReader reads a party's current unread total
type UnreadReader interface {
	Total(ctx context.Context, userID string, kind entity.PartyKind) (int, error)
}

// ConversationHandler handles HTTP requests for gig conversations
type ConversationHandler struct {
	policy MessagingPolicy
	unread UnreadReader
	logger *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(p MessagingPolicy, u UnreadReader, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{policy: p, unread: u, logger: logger}
}

// RegisterRoutes registers conversation routes
func (h *ConversationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.Open())
		r.Get("/", h.List())
		r.Post("/accepted", h.OpenForAcceptedApplication())
		r.Get("/{conversationID}", h.Get())
		r.Get("/{conversationID}/messages", h.ListMessages())
		r.Post("/{conversationID}/messages", h.SendMessage())
		r.Post("/{conversationID}/read", h.MarkRead())
	})
	r.Get("/unread", h.Unread())
}

// OpenConversationRequest represents the request body for opening a conversation
type OpenConversationRequest struct {
	GigID            string `json:"gig_id"`
	ArtistID         string `json:"artist_id"`
	ArtistKind       string `json:"artist_kind"` // musician, band
	ArtistName       string `json:"artist_name"`
	VenueManagerID   string `json:"venue_manager_id"`
	VenueManagerName string `json:"venue_manager_name"`
}

func (req OpenConversationRequest) input() service.GetOrCreateInput {
	return service.GetOrCreateInput{
		GigID:            req.GigID,
		ArtistID:         req.ArtistID,
		ArtistKind:       entity.ArtistKind(req.ArtistKind),
		ArtistName:       req.ArtistName,
		VenueManagerID:   req.VenueManagerID,
		VenueManagerName: req.VenueManagerName,
	}
}

// Open handles POST /conversations
func (h *ConversationHandler) Open() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req OpenConversationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		conv, err := h.policy.OpenConversation(r.Context(), actor, req.input())
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, conv)
	}
}

// OpenAcceptedRequest represents the request body for opening the
// conversation of an accepted gig application
type OpenAcceptedRequest struct {
	OpenConversationRequest
	Note string `json:"note"`
}

// OpenForAcceptedApplication handles POST /conversations/accepted
func (h *ConversationHandler) OpenForAcceptedApplication() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req OpenAcceptedRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		conv, err := h.policy.OpenForAcceptedApplication(r.Context(), actor, service.OpenForAcceptedApplicationInput{
			GetOrCreateInput: req.input(),
			Note:             req.Note,
		})
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, conv)
	}
}

// ListConversationsResponse represents the inbox of a party
type ListConversationsResponse struct {
	Conversations []entity.Conversation `json:"conversations"`
}

// List handles GET /conversations?kind=&party_id=
func (h *ConversationHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		kind, err := entity.ParsePartyKind(r.URL.Query().Get("kind"))
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		convs, err := h.policy.ListConversations(r.Context(), actor, policy.ListConversationsInput{
			PartyID: r.URL.Query().Get("party_id"),
			Kind:    kind,
		})
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}
		if convs == nil {
			convs = []entity.Conversation{}
		}

		response.OK(w, ListConversationsResponse{Conversations: convs})
	}
}

// Get handles GET /conversations/{conversationID}
func (h *ConversationHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		conv, err := h.policy.GetConversation(r.Context(), actor, chi.URLParam(r, "conversationID"))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, conv)
	}
}

// ListMessagesResponse represents the messages of a conversation, oldest first
type ListMessagesResponse struct {
	Messages []entity.Message `json:"messages"`
}

// ListMessages handles GET /conversations/{conversationID}/messages
func (h *ConversationHandler) ListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		msgs, err := h.policy.ListMessages(r.Context(), actor, chi.URLParam(r, "conversationID"))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}
		if msgs == nil {
			msgs = []entity.Message{}
		}

		response.OK(w, ListMessagesResponse{Messages: msgs})
	}
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Body       string `json:"body"`
	SenderKind string `json:"sender_kind,omitempty"` // venue_manager, artist
}

// SendMessage handles POST /conversations/{conversationID}/messages.
// An Idempotency-Key header makes retries of the same send safe.
func (h *ConversationHandler) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		var req SendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		msg, err := h.policy.SendMessage(r.Context(), actor, policy.SendMessageInput{
			ConversationID: chi.URLParam(r, "conversationID"),
			MessageID:      r.Header.Get("Idempotency-Key"),
			SenderKind:     entity.PartyKind(req.SenderKind),
			Body:           req.Body,
		})
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.Created(w, msg)
	}
}

// MarkRead handles POST /conversations/{conversationID}/read?kind=
func (h *ConversationHandler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		err := h.policy.MarkRead(r.Context(), actor, chi.URLParam(r, "conversationID"),
			entity.PartyKind(r.URL.Query().Get("kind")))
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.NoContent(w)
	}
}

// UnreadResponse represents a party's unread total
type UnreadResponse struct {
	Total int `json:"total"`
}

// Unread handles GET /unread?kind=&party_id=
func (h *ConversationHandler) Unread() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}

		kind, err := entity.ParsePartyKind(r.URL.Query().Get("kind"))
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		partyID := r.URL.Query().Get("party_id")
		if partyID == "" {
			partyID = actor
		}

		allowed, err := h.policy.CanActAs(r.Context(), actor, partyID, kind)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}
		if !allowed {
			response.Forbidden(w, entity.ErrNotParty.Error())
			return
		}

		total, err := h.unread.Total(r.Context(), partyID, kind)
		if err != nil {
			handleDomainError(w, r, h.logger, err)
			return
		}

		response.OK(w, UnreadResponse{Total: total})
	}
}
