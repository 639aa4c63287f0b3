package service

import (
	"context"
	"sort"
	"sync"

	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
)

// memStore is an in-memory stand-in for the conversations and messages tables
type memStore struct {
	mu       sync.Mutex
	convs    map[string]*entity.Conversation
	order    []string
	messages []entity.Message
	feed     *fakeFeed

	// beforeCreate runs before a conversation insert, outside the lock
	beforeCreate func()
	// failNext makes the next call of the named operation fail with the error
	failNext map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		convs:    make(map[string]*entity.Conversation),
		feed:     &fakeFeed{},
		failNext: make(map[string]error),
	}
}

func (m *memStore) fail(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.failNext[op]
	delete(m.failNext, op)
	return err
}

func (m *memStore) insert(conv entity.Conversation) {
	m.mu.Lock()
	m.convs[conv.ID] = &conv
	m.order = append(m.order, conv.ID)
	m.mu.Unlock()
}

func (m *memStore) conversation(id string) entity.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.convs[id]
}

type fakeConversations struct{ *memStore }

func (f fakeConversations) Create(_ context.Context, conv *entity.Conversation) error {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	if err := f.fail("create"); err != nil {
		return err
	}
	f.insert(*conv)
	f.feed.publish(entity.EventFor(conv, ""))
	return nil
}

func (f fakeConversations) GetByID(_ context.Context, id string) (*entity.Conversation, error) {
	if err := f.fail("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	c := *conv
	return &c, nil
}

func (f fakeConversations) FindActive(_ context.Context, gigID, artistID string) ([]entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Conversation
	for _, id := range f.order {
		c := f.convs[id]
		if c.GigID == gigID && c.ArtistID == artistID && c.IsActive {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f fakeConversations) ListByParty(_ context.Context, userID string, kind entity.PartyKind) ([]entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Conversation
	for _, id := range f.order {
		c := f.convs[id]
		if c.IsActive && c.PartyID(kind) == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f fakeConversations) MarkRead(_ context.Context, conv *entity.Conversation, readerKind entity.PartyKind) error {
	f.mu.Lock()
	c := f.convs[conv.ID]
	if readerKind == entity.PartyVenueManager {
		c.UnreadCount.VenueManager = 0
	} else {
		c.UnreadCount.Artist = 0
	}
	reader := c.PartyID(readerKind)
	for i := range f.messages {
		if f.messages[i].ConversationID == conv.ID && f.messages[i].RecipientID == reader {
			f.messages[i].IsRead = true
		}
	}
	f.mu.Unlock()
	f.feed.publish(entity.EventFor(conv, ""))
	return nil
}

func (f fakeConversations) Deactivate(_ context.Context, conv *entity.Conversation) error {
	f.mu.Lock()
	f.convs[conv.ID].IsActive = false
	f.mu.Unlock()
	f.feed.publish(entity.EventFor(conv, ""))
	return nil
}

type fakeMessages struct{ *memStore }

func (f fakeMessages) Append(_ context.Context, conv *entity.Conversation, msg *entity.Message) (bool, error) {
	if err := f.fail("append"); err != nil {
		return false, err
	}
	f.mu.Lock()
	for _, existing := range f.messages {
		if existing.ID == msg.ID {
			f.mu.Unlock()
			return false, nil
		}
	}
	c, ok := f.convs[msg.ConversationID]
	if !ok {
		f.mu.Unlock()
		return false, entity.ErrConversationNotFound
	}
	f.messages = append(f.messages, *msg)
	ts := msg.Timestamp
	c.LastMessage = entity.Preview(msg.Body)
	c.LastMessageAt = &ts
	c.LastMessageSenderID = msg.SenderID
	if msg.SenderKind.Other() == entity.PartyVenueManager {
		c.UnreadCount.VenueManager++
	} else {
		c.UnreadCount.Artist++
	}
	f.mu.Unlock()
	f.feed.publish(entity.EventFor(conv, msg.ID))
	return true, nil
}

func (f fakeMessages) GetByID(_ context.Context, id string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, nil
}

func (f fakeMessages) ListByConversation(_ context.Context, conversationID string) ([]entity.Message, error) {
	return f.ListAfter(context.Background(), conversationID, "")
}

func (f fakeMessages) ListAfter(_ context.Context, conversationID, afterID string) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Message
	seen := afterID == ""
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if seen {
			out = append(out, m)
		}
		if m.ID == afterID {
			seen = true
		}
	}
	return out, nil
}

type fakeFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(entity.ChangeEvent)
}

func (f *fakeFeed) Subscribe(fn func(entity.ChangeEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(entity.ChangeEvent))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeFeed) publish(ev entity.ChangeEvent) {
	f.mu.Lock()
	subs := make([]func(entity.ChangeEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (f *fakeFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeGigs map[string]GigInfo

func (f fakeGigs) GetGig(_ context.Context, id string) (*GigInfo, error) {
	gig, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &gig, nil
}
