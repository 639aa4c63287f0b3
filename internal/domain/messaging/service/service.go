package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
	"github.com/vadim/gigfinder/internal/retry"
)

// ConversationRepository defines the interface for conversation storage.
// Getters return nil, nil when the record does not exist.
type ConversationRepository interface {
	Create(ctx context.Context, conv *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	FindActive(ctx context.Context, gigID, artistID string) ([]entity.Conversation, error)
	ListByParty(ctx context.Context, userID string, kind entity.PartyKind) ([]entity.Conversation, error)
	MarkRead(ctx context.Context, conv *entity.Conversation, readerKind entity.PartyKind) error
	Deactivate(ctx context.Context, conv *entity.Conversation) error
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	Append(ctx context.Context, conv *entity.Conversation, msg *entity.Message) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]entity.Message, error)
	ListAfter(ctx context.Context, conversationID, afterID string) ([]entity.Message, error)
}

// ChangeFeed delivers conversation change events
type ChangeFeed interface {
	Subscribe(fn func(entity.ChangeEvent)) func()
}

// GigInfo is the part of a gig a conversation needs
type GigInfo struct {
	ID             string
	Title          string
	VenueManagerID string
}

// GigProvider looks up gigs. Returns nil, nil when the gig does not exist.
type GigProvider interface {
	GetGig(ctx context.Context, id string) (*GigInfo, error)
}

// Service handles conversation and message business logic
type Service struct {
	convRepo ConversationRepository
	msgRepo  MessageRepository
	gigs     GigProvider
	feed     ChangeFeed
	retry    retry.Policy
	now      func() time.Time
	newID    func() string
}

// Option configures a Service
type Option func(*Service)

// WithRetryPolicy overrides the retry policy for transient store errors
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a new messaging service
func New(convRepo ConversationRepository, msgRepo MessageRepository, gigs GigProvider, feed ChangeFeed, opts ...Option) *Service {
	s := &Service{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		gigs:     gigs,
		feed:     feed,
		retry:    retry.DefaultPolicy,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateInput represents input for opening a conversation
type GetOrCreateInput struct {
	GigID            string
	ArtistID         string
	ArtistKind       entity.ArtistKind
	ArtistName       string
	VenueManagerID   string
	VenueManagerName string
}

// GetOrCreateConversation returns the active conversation for (gig, artist),
// creating it when none exists.
//
// Uniqueness is best-effort: two concurrent callers may both insert. After
// inserting, the caller re-reads the active set and, when an older
// conversation exists, deactivates its own and returns the older one, so
// both callers converge on the same id.
func (s *Service) GetOrCreateConversation(ctx context.Context, in GetOrCreateInput) (*entity.Conversation, error) {
	if err := entity.ValidateKey(in.GigID, in.ArtistID, in.VenueManagerID); err != nil {
		return nil, err
	}
	if _, err := entity.ParseArtistKind(string(in.ArtistKind)); err != nil {
		return nil, err
	}

	return retry.Value(ctx, s.retry, func() (*entity.Conversation, error) {
		return s.getOrCreate(ctx, in)
	})
}

func (s *Service) getOrCreate(ctx context.Context, in GetOrCreateInput) (*entity.Conversation, error) {
	gig, err := s.gigs.GetGig(ctx, in.GigID)
	if err != nil {
		return nil, fmt.Errorf("getting gig: %w", err)
	}
	if gig == nil {
		return nil, entity.ErrGigNotFound
	}
	if gig.VenueManagerID != in.VenueManagerID {
		return nil, entity.ErrNotGigOwner
	}

	existing, err := s.convRepo.FindActive(ctx, in.GigID, in.ArtistID)
	if err != nil {
		return nil, fmt.Errorf("finding conversation: %w", err)
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	now := s.now()
	conv := &entity.Conversation{
		ID:               s.newID(),
		GigID:            in.GigID,
		GigTitle:         gig.Title,
		VenueManagerID:   in.VenueManagerID,
		VenueManagerName: in.VenueManagerName,
		ArtistID:         in.ArtistID,
		ArtistName:       in.ArtistName,
		ArtistKind:       in.ArtistKind,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	active, err := s.convRepo.FindActive(ctx, in.GigID, in.ArtistID)
	if err != nil {
		return nil, fmt.Errorf("re-checking conversation: %w", err)
	}
	if len(active) > 0 && active[0].ID != conv.ID {
		if err := s.convRepo.Deactivate(ctx, conv); err != nil {
			return nil, fmt.Errorf("deactivating duplicate: %w", err)
		}
		return &active[0], nil
	}

	return conv, nil
}

// OpenForAcceptedApplicationInput represents input for opening a
// conversation after a gig application was accepted
type OpenForAcceptedApplicationInput struct {
	GetOrCreateInput
	Note string
}

// OpenForAcceptedApplication opens the conversation for an accepted gig
// application and posts a system message from the venue manager.
func (s *Service) OpenForAcceptedApplication(ctx context.Context, in OpenForAcceptedApplicationInput) (*entity.Conversation, error) {
	conv, err := s.GetOrCreateConversation(ctx, in.GetOrCreateInput)
	if err != nil {
		return nil, err
	}

	note := in.Note
	if note == "" {
		note = fmt.Sprintf("Application accepted for %s", conv.GigTitle)
	}

	_, err = s.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ID,
		MessageID:      "accepted:" + conv.ID,
		SenderID:       conv.VenueManagerID,
		SenderKind:     entity.PartyVenueManager,
		Body:           note,
		Kind:           entity.MessageKindSystem,
	})
	if err != nil {
		return nil, err
	}

	return s.GetConversation(ctx, conv.ID)
}

// GetConversation retrieves a conversation by ID
func (s *Service) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	return retry.Value(ctx, s.retry, func() (*entity.Conversation, error) {
		return s.loadConversation(ctx, id)
	})
}

func (s *Service) loadConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	if conv == nil {
		return nil, entity.ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations returns the active conversations of a party
func (s *Service) ListConversations(ctx context.Context, userID string, kind entity.PartyKind) ([]entity.Conversation, error) {
	if _, err := entity.ParsePartyKind(string(kind)); err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.retry, func() ([]entity.Conversation, error) {
		return s.convRepo.ListByParty(ctx, userID, kind)
	})
}

// SendMessageInput represents input for sending a message
type SendMessageInput struct {
	ConversationID string
	// MessageID is an optional idempotency key, scoped to the conversation
	// and the sender. A caller retrying a send passes the same key so the
	// message and the unread increment are applied once.
	MessageID  string
	SenderID   string
	SenderKind entity.PartyKind
	Body       string
	Kind       entity.MessageKind
}

// SendMessage appends a message and bumps the recipient's unread counter
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*entity.Message, error) {
	if err := entity.ValidateBody(in.Body); err != nil {
		return nil, err
	}
	if _, err := entity.ParsePartyKind(string(in.SenderKind)); err != nil {
		return nil, err
	}
	if in.Kind == "" {
		in.Kind = entity.MessageKindText
	}
	if in.MessageID == "" {
		in.MessageID = s.newID()
	} else {
		in.MessageID = ScopedMessageID(in.ConversationID, in.SenderID, in.MessageID)
	}

	return retry.Value(ctx, s.retry, func() (*entity.Message, error) {
		return s.send(ctx, in)
	})
}

func (s *Service) send(ctx context.Context, in SendMessageInput) (*entity.Message, error) {
	conv, err := s.loadConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParty(in.SenderID, in.SenderKind) {
		return nil, entity.ErrNotParty
	}
	if !conv.IsActive {
		return nil, entity.ErrConversationInactive
	}

	recipient := in.SenderKind.Other()
	msg := &entity.Message{
		ID:             in.MessageID,
		ConversationID: conv.ID,
		GigID:          conv.GigID,
		SenderID:       in.SenderID,
		SenderName:     conv.PartyName(in.SenderKind),
		SenderKind:     in.SenderKind,
		RecipientID:    conv.PartyID(recipient),
		RecipientName:  conv.PartyName(recipient),
		Body:           in.Body,
		Kind:           in.Kind,
		Timestamp:      s.now(),
	}

	inserted, err := s.msgRepo.Append(ctx, conv, msg)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}
	if inserted {
		return msg, nil
	}

	stored, err := s.msgRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	if stored == nil {
		return msg, nil
	}
	if stored.ConversationID != conv.ID || stored.SenderID != in.SenderID || stored.Body != in.Body {
		return nil, entity.ErrMessageIDConflict
	}
	return stored, nil
}

// messageIDSpace namespaces message ids derived from client keys
var messageIDSpace = uuid.MustParse("6f1c2a9e-3d4b-5e8f-9a0b-1c2d3e4f5a6b")

// ScopedMessageID derives the stored id of a message from the client's
// idempotency key. The same key reused by another sender or in another
// conversation yields a different id.
func ScopedMessageID(conversationID, senderID, key string) string {
	return uuid.NewSHA1(messageIDSpace, []byte(conversationID+"/"+senderID+"/"+key)).String()
}

// MarkRead resets the reader's unread counter and marks messages addressed
// to the reader as read. Idempotent.
func (s *Service) MarkRead(ctx context.Context, conversationID, readerID string, readerKind entity.PartyKind) error {
	if _, err := entity.ParsePartyKind(string(readerKind)); err != nil {
		return err
	}

	return retry.Do(ctx, s.retry, func() error {
		conv, err := s.loadConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsParty(readerID, readerKind) {
			return entity.ErrNotParty
		}
		if err := s.convRepo.MarkRead(ctx, conv, readerKind); err != nil {
			return fmt.Errorf("marking read: %w", err)
		}
		return nil
	})
}

// ListMessages returns the messages of a conversation, oldest first
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]entity.Message, error) {
	return retry.Value(ctx, s.retry, func() ([]entity.Message, error) {
		if _, err := s.loadConversation(ctx, conversationID); err != nil {
			return nil, err
		}
		messages, err := s.msgRepo.ListByConversation(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}
		return messages, nil
	})
}

// GetMessage returns a message of the conversation. A message stored in
// another conversation is reported as not found.
func (s *Service) GetMessage(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	msg, err := retry.Value(ctx, s.retry, func() (*entity.Message, error) {
		return s.msgRepo.GetByID(ctx, messageID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	if msg == nil || msg.ConversationID != conversationID {
		return nil, entity.ErrMessageNotFound
	}
	return msg, nil
}

// WatchMessages pushes messages newer than afterID to fn as they arrive,
// oldest first, until ctx is cancelled. Messages already stored after
// afterID are delivered first. An afterID that is not a message of the
// conversation fails with ErrMessageNotFound.
func (s *Service) WatchMessages(ctx context.Context, conversationID, afterID string, fn func(entity.Message)) error {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	if afterID != "" {
		if _, err := s.GetMessage(ctx, conversationID, afterID); err != nil {
			return err
		}
	}

	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	unsubscribe := s.feed.Subscribe(func(ev entity.ChangeEvent) {
		if ev.Resync || (ev.ConversationID == conversationID && ev.MessageID != "") {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	last := afterID
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		}

		messages, err := s.msgRepo.ListAfter(ctx, conversationID, last)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listing new messages: %w", err)
		}
		for _, msg := range messages {
			if ctx.Err() != nil {
				return nil
			}
			fn(msg)
			last = msg.ID
		}
	}
}
