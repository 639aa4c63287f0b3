package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/vadim/gigfinder/internal/apperr"
	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
	"github.com/vadim/gigfinder/internal/domain/messaging/service"
)

type stubService struct {
	conv     *entity.Conversation
	sent     []service.SendMessageInput
	readBy   []string
	opened   int
	listedAs string
}

func (s *stubService) GetOrCreateConversation(_ context.Context, _ service.GetOrCreateInput) (*entity.Conversation, error) {
	s.opened++
	return s.conv, nil
}

func (s *stubService) OpenForAcceptedApplication(_ context.Context, _ service.OpenForAcceptedApplicationInput) (*entity.Conversation, error) {
	s.opened++
	return s.conv, nil
}

func (s *stubService) GetConversation(_ context.Context, id string) (*entity.Conversation, error) {
	if s.conv == nil || s.conv.ID != id {
		return nil, entity.ErrConversationNotFound
	}
	return s.conv, nil
}

func (s *stubService) ListConversations(_ context.Context, userID string, _ entity.PartyKind) ([]entity.Conversation, error) {
	s.listedAs = userID
	return nil, nil
}

func (s *stubService) SendMessage(_ context.Context, in service.SendMessageInput) (*entity.Message, error) {
	s.sent = append(s.sent, in)
	return &entity.Message{ID: "m1", SenderID: in.SenderID}, nil
}

func (s *stubService) MarkRead(_ context.Context, _, readerID string, _ entity.PartyKind) error {
	s.readBy = append(s.readBy, readerID)
	return nil
}

func (s *stubService) ListMessages(context.Context, string) ([]entity.Message, error) {
	return nil, nil
}

func (s *stubService) GetMessage(_ context.Context, conversationID, messageID string) (*entity.Message, error) {
	return &entity.Message{ID: messageID, ConversationID: conversationID}, nil
}

func (s *stubService) WatchMessages(context.Context, string, string, func(entity.Message)) error {
	return nil
}

type members map[string][]string

func (m members) IsMember(_ context.Context, bandID, userID string) (bool, error) {
	for _, id := range m[bandID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func newPolicy() (*Policy, *stubService) {
	svc := &stubService{conv: &entity.Conversation{
		ID:             "c1",
		VenueManagerID: "vm-1",
		ArtistID:       "band-1",
		ArtistKind:     entity.ArtistBand,
		IsActive:       true,
	}}
	return New(svc, members{"band-1": {"drummer"}}), svc
}

func TestSendMessageActsAsParty(t *testing.T) {
	tests := []struct {
		name       string
		actor      string
		kind       entity.PartyKind
		wantSender string
		wantErr    error
	}{
		{name: "venue manager", actor: "vm-1", wantSender: "vm-1"},
		{name: "band member speaks for the band", actor: "drummer", wantSender: "band-1"},
		{name: "explicit kind", actor: "vm-1", kind: entity.PartyVenueManager, wantSender: "vm-1"},
		{name: "stranger", actor: "stranger", wantErr: apperr.ErrPermission},
		{name: "wrong side", actor: "vm-1", kind: entity.PartyArtist, wantErr: apperr.ErrPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, svc := newPolicy()
			_, err := p.SendMessage(context.Background(), tt.actor, SendMessageInput{
				ConversationID: "c1",
				SenderKind:     tt.kind,
				Body:           "hello",
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if len(svc.sent) != 0 {
					t.Fatal("nothing must be sent when unauthorized")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if svc.sent[0].SenderID != tt.wantSender {
				t.Errorf("expected sender %s, got %s", tt.wantSender, svc.sent[0].SenderID)
			}
		})
	}
}

func TestMarkReadUsesPartyID(t *testing.T) {
	p, svc := newPolicy()

	if err := p.MarkRead(context.Background(), "drummer", "c1", ""); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(svc.readBy) != 1 || svc.readBy[0] != "band-1" {
		t.Errorf("expected read as band-1, got %v", svc.readBy)
	}
}

func TestOpenConversationAuthorization(t *testing.T) {
	p, svc := newPolicy()
	in := service.GetOrCreateInput{GigID: "g1", VenueManagerID: "vm-1", ArtistID: "band-1", ArtistKind: entity.ArtistBand}

	for _, actor := range []string{"vm-1", "band-1", "drummer"} {
		if _, err := p.OpenConversation(context.Background(), actor, in); err != nil {
			t.Errorf("%s: unexpected error %v", actor, err)
		}
	}
	if _, err := p.OpenConversation(context.Background(), "stranger", in); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("expected permission error, got %v", err)
	}
	if svc.opened != 3 {
		t.Errorf("expected 3 opens, got %d", svc.opened)
	}

	accepted := service.OpenForAcceptedApplicationInput{GetOrCreateInput: in}
	if _, err := p.OpenForAcceptedApplication(context.Background(), "drummer", accepted); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("only the venue manager accepts applications, got %v", err)
	}
}

func TestListConversationsDefaultsToActor(t *testing.T) {
	p, svc := newPolicy()

	if _, err := p.ListConversations(context.Background(), "vm-1", ListConversationsInput{Kind: entity.PartyVenueManager}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if svc.listedAs != "vm-1" {
		t.Errorf("expected listing as vm-1, got %q", svc.listedAs)
	}

	_, err := p.ListConversations(context.Background(), "stranger", ListConversationsInput{PartyID: "band-1", Kind: entity.PartyArtist})
	if !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("expected permission error, got %v", err)
	}
}

func TestGetMessageRequiresParty(t *testing.T) {
	p, _ := newPolicy()

	if _, err := p.GetMessage(context.Background(), "stranger", "c1", "m1"); !errors.Is(err, apperr.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	msg, err := p.GetMessage(context.Background(), "drummer", "c1", "m1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if msg.ID != "m1" {
		t.Errorf("unexpected message %+v", msg)
	}
}
