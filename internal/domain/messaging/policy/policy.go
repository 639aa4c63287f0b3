package policy

import (
	"context"
	"fmt"

	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
	"github.com/vadim/gigfinder/internal/domain/messaging/service"
)

// MessagingService defines the interface for the messaging service
type MessagingService interface {
	GetOrCreateConversation(ctx context.Context, in service.GetOrCreateInput) (*entity.Conversation, error)
	OpenForAcceptedApplication(ctx context.Context, in service.OpenForAcceptedApplicationInput) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	ListConversations(ctx context.Context, userID string, kind entity.PartyKind) ([]entity.Conversation, error)
	SendMessage(ctx context.Context, in service.SendMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string, readerKind entity.PartyKind) error
	ListMessages(ctx context.Context, conversationID string) ([]entity.Message, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	WatchMessages(ctx context.Context, conversationID, afterID string, fn func(entity.Message)) error
}

// BandMembership reports whether a user belongs to a band
type BandMembership interface {
	IsMember(ctx context.Context, bandID, userID string) (bool, error)
}

// Policy handles messaging operations with actor authorization.
//
// An actor may act as a party when it is that party, or, on the artist
// side, when it is a member of the band that is the party.
type Policy struct {
	svc   MessagingService
	bands BandMembership
}

// New creates a new messaging policy
func New(svc MessagingService, bands BandMembership) *Policy {
	return &Policy{
		svc:   svc,
		bands: bands,
	}
}

// CanActAs reports whether actorID may act as partyID on the kind side
func (p *Policy) CanActAs(ctx context.Context, actorID, partyID string, kind entity.PartyKind) (bool, error) {
	if actorID == "" || partyID == "" {
		return false, nil
	}
	if actorID == partyID {
		return true, nil
	}
	if kind != entity.PartyArtist {
		return false, nil
	}

	ok, err := p.bands.IsMember(ctx, partyID, actorID)
	if err != nil {
		return false, fmt.Errorf("checking band membership: %w", err)
	}
	return ok, nil
}

func (p *Policy) authorize(ctx context.Context, actorID, partyID string, kind entity.PartyKind) error {
	ok, err := p.CanActAs(ctx, actorID, partyID, kind)
	if err != nil {
		return err
	}
	if !ok {
		return entity.ErrNotParty
	}
	return nil
}

// partyOf returns the side of conv the actor may act on, preferring kind
// when the caller named one
func (p *Policy) partyOf(ctx context.Context, actorID string, conv *entity.Conversation, kind entity.PartyKind) (entity.PartyKind, error) {
	kinds := []entity.PartyKind{entity.PartyVenueManager, entity.PartyArtist}
	if kind != "" {
		if _, err := entity.ParsePartyKind(string(kind)); err != nil {
			return "", err
		}
		kinds = []entity.PartyKind{kind}
	}

	for _, k := range kinds {
		ok, err := p.CanActAs(ctx, actorID, conv.PartyID(k), k)
		if err != nil {
			return "", err
		}
		if ok {
			return k, nil
		}
	}
	return "", entity.ErrNotParty
}

// OpenConversation opens the conversation for a gig on behalf of either party
func (p *Policy) OpenConversation(ctx context.Context, actorID string, in service.GetOrCreateInput) (*entity.Conversation, error) {
	if err := p.authorizeEither(ctx, actorID, in.VenueManagerID, in.ArtistID); err != nil {
		return nil, err
	}
	return p.svc.GetOrCreateConversation(ctx, in)
}

// OpenForAcceptedApplication opens the conversation after the venue manager
// accepted an artist's gig application
func (p *Policy) OpenForAcceptedApplication(ctx context.Context, actorID string, in service.OpenForAcceptedApplicationInput) (*entity.Conversation, error) {
	if err := p.authorize(ctx, actorID, in.VenueManagerID, entity.PartyVenueManager); err != nil {
		return nil, err
	}
	return p.svc.OpenForAcceptedApplication(ctx, in)
}

func (p *Policy) authorizeEither(ctx context.Context, actorID, venueManagerID, artistID string) error {
	if actorID != "" && actorID == venueManagerID {
		return nil
	}
	return p.authorize(ctx, actorID, artistID, entity.PartyArtist)
}

// GetConversation returns a conversation the actor is a party to
func (p *Policy) GetConversation(ctx context.Context, actorID, conversationID string) (*entity.Conversation, error) {
	conv, err := p.svc.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := p.partyOf(ctx, actorID, conv, ""); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversationsInput represents input for listing conversations.
// PartyID defaults to the actor.
type ListConversationsInput struct {
	PartyID string
	Kind    entity.PartyKind
}

// ListConversations lists the active conversations of a party the actor may act as
func (p *Policy) ListConversations(ctx context.Context, actorID string, in ListConversationsInput) ([]entity.Conversation, error) {
	if in.PartyID == "" {
		in.PartyID = actorID
	}
	if err := p.authorize(ctx, actorID, in.PartyID, in.Kind); err != nil {
		return nil, err
	}
	return p.svc.ListConversations(ctx, in.PartyID, in.Kind)
}

// SendMessageInput represents input for sending a message as the actor.
// SenderKind may be empty when the actor is on one side only.
type SendMessageInput struct {
	ConversationID string
	MessageID      string
	SenderKind     entity.PartyKind
	Body           string
}

// SendMessage sends a message on behalf of the party the actor acts as
func (p *Policy) SendMessage(ctx context.Context, actorID string, in SendMessageInput) (*entity.Message, error) {
	conv, err := p.svc.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	kind, err := p.partyOf(ctx, actorID, conv, in.SenderKind)
	if err != nil {
		return nil, err
	}

	return p.svc.SendMessage(ctx, service.SendMessageInput{
		ConversationID: conv.ID,
		MessageID:      in.MessageID,
		SenderID:       conv.PartyID(kind),
		SenderKind:     kind,
		Body:           in.Body,
	})
}

// MarkRead marks the conversation read for the party the actor acts as
func (p *Policy) MarkRead(ctx context.Context, actorID, conversationID string, kind entity.PartyKind) error {
	conv, err := p.svc.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	kind, err = p.partyOf(ctx, actorID, conv, kind)
	if err != nil {
		return err
	}
	return p.svc.MarkRead(ctx, conv.ID, conv.PartyID(kind), kind)
}

// ListMessages lists messages of a conversation the actor is a party to
func (p *Policy) ListMessages(ctx context.Context, actorID, conversationID string) ([]entity.Message, error) {
	if _, err := p.GetConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	return p.svc.ListMessages(ctx, conversationID)
}

// GetMessage returns a message of a conversation the actor is a party to
func (p *Policy) GetMessage(ctx context.Context, actorID, conversationID, messageID string) (*entity.Message, error) {
	if _, err := p.GetConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	return p.svc.GetMessage(ctx, conversationID, messageID)
}

// WatchMessages streams new messages of a conversation the actor is a party to
func (p *Policy) WatchMessages(ctx context.Context, actorID, conversationID, afterID string, fn func(entity.Message)) error {
	if _, err := p.GetConversation(ctx, actorID, conversationID); err != nil {
		return err
	}
	return p.svc.WatchMessages(ctx, conversationID, afterID, fn)
}
