package unread

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vadim/gigfinder/internal/apperr"
	"github.com/vadim/gigfinder/internal/cache"
	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
)

type fakeCounter struct {
	mu     sync.Mutex
	totals map[string]int
	calls  int
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{totals: make(map[string]int)}
}

func (f *fakeCounter) SumUnread(_ context.Context, userID string, kind entity.PartyKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.totals[string(kind)+":"+userID], nil
}

func (f *fakeCounter) set(userID string, kind entity.PartyKind, total int) {
	f.mu.Lock()
	f.totals[string(kind)+":"+userID] = total
	f.mu.Unlock()
}

func (f *fakeCounter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeCounter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
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

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memCache) Ping(context.Context) error { return nil }
func (m *memCache) Close() error               { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var venueEvent = entity.ChangeEvent{ConversationID: "c1", VenueManagerID: "vm-1", ArtistID: "artist-1"}

// recorder collects callback values
type recorder struct {
	ch chan int
}

func newRecorder() *recorder { return &recorder{ch: make(chan int, 32)} }

func (r *recorder) callback(total int) { r.ch <- total }

func (r *recorder) next(t *testing.T) int {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return 0
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.ch:
		t.Fatalf("unexpected callback with %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeDeliversInitialAndUpdatedTotals(t *testing.T) {
	counter := newFakeCounter()
	feed := &fakeFeed{}
	svc := New(counter, feed, discardLogger())
	rec := newRecorder()

	sub, err := svc.SubscribeToTotalUnreadCount("vm-1", entity.PartyVenueManager, rec.callback)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()

	if got := rec.next(t); got != 0 {
		t.Fatalf("expected initial total 0, got %d", got)
	}

	// three messages arrive for the venue manager
	for i := 1; i <= 3; i++ {
		counter.set("vm-1", entity.PartyVenueManager, i)
		feed.publish(venueEvent)
	}
	waitForTotal(t, rec, 3)

	// mark read
	counter.set("vm-1", entity.PartyVenueManager, 0)
	feed.publish(venueEvent)
	waitForTotal(t, rec, 0)
}

// waitForTotal drains callbacks until want shows up. Totals must never go
// backwards while climbing towards a higher want.
func waitForTotal(t *testing.T, rec *recorder, want int) {
	t.Helper()
	last := -1
	for {
		got := rec.next(t)
		if got == want {
			return
		}
		if want > 0 && got < last {
			t.Fatalf("total went backwards from %d to %d", last, got)
		}
		last = got
	}
}

func TestSubscribeIgnoresOtherUsers(t *testing.T) {
	counter := newFakeCounter()
	feed := &fakeFeed{}
	svc := New(counter, feed, discardLogger())
	rec := newRecorder()

	sub, err := svc.SubscribeToTotalUnreadCount("artist-2", entity.PartyArtist, rec.callback)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()
	rec.next(t)

	feed.publish(venueEvent)
	rec.none(t)
}

func TestNoCallbackAfterUnsubscribe(t *testing.T) {
	counter := newFakeCounter()
	feed := &fakeFeed{}
	svc := New(counter, feed, discardLogger())
	rec := newRecorder()

	sub, err := svc.SubscribeToTotalUnreadCount("vm-1", entity.PartyVenueManager, rec.callback)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	rec.next(t)

	sub.Unsubscribe()
	sub.Unsubscribe()

	counter.set("vm-1", entity.PartyVenueManager, 7)
	feed.publish(venueEvent)
	rec.none(t)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription goroutine did not exit")
	}
	if feed.subscribers() != 0 {
		t.Error("feed subscription should be released")
	}
}

func TestUnsubscribeFromInsideCallback(t *testing.T) {
	counter := newFakeCounter()
	feed := &fakeFeed{}
	svc := New(counter, feed, discardLogger())

	var sub *Subscription
	var mu sync.Mutex
	calls := 0
	ready := make(chan struct{})
	called := make(chan struct{}, 1)

	sub, err := svc.SubscribeToTotalUnreadCount("vm-1", entity.PartyVenueManager, func(int) {
		<-ready
		mu.Lock()
		calls++
		mu.Unlock()
		sub.Unsubscribe()
		called <- struct{}{}
	})
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	close(ready)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback deadlocked")
	}

	feed.publish(venueEvent)
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription goroutine did not exit")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected exactly 1 callback, got %d", calls)
	}
}

func TestUnsubscribeDuringRunningCallback(t *testing.T) {
	counter := newFakeCounter()
	feed := &fakeFeed{}
	svc := New(counter, feed, discardLogger())

	entered := make(chan struct{})
	release := make(chan struct{})
	sub, err := svc.SubscribeToTotalUnreadCount("vm-1", entity.PartyVenueManager, func(int) {
		close(entered)
		<-release
	})
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	<-entered

	unsubscribed := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(unsubscribed)
	}()
	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe blocked on a running callback")
	}

	select {
	case <-sub.Done():
		t.Fatal("Done closed while the callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription goroutine did not exit")
	}
}

func TestRecomputeFailureKeepsLastTotal(t *testing.T) {
	counter := newFakeCounter()
	counter.set("vm-1", entity.PartyVenueManager, 4)
	feed := &fakeFeed{}
	svc := New(counter, feed, discardLogger())
	rec := newRecorder()

	sub, err := svc.SubscribeToTotalUnreadCount("vm-1", entity.PartyVenueManager, rec.callback)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()
	if got := rec.next(t); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}

	counter.setErr(apperr.Transient("summing unread", errors.New("connection refused")))
	feed.publish(venueEvent)
	feed.publish(entity.ChangeEvent{Err: errors.New("listener down")})
	rec.none(t)

	counter.setErr(nil)
	counter.set("vm-1", entity.PartyVenueManager, 5)
	feed.publish(entity.ChangeEvent{Resync: true})
	if got := rec.next(t); got != 5 {
		t.Fatalf("expected 5 after resync, got %d", got)
	}
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	svc := New(newFakeCounter(), &fakeFeed{}, discardLogger())

	if _, err := svc.SubscribeToTotalUnreadCount("vm-1", "promoter", func(int) {}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.SubscribeToTotalUnreadCount("", entity.PartyArtist, func(int) {}); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestTotalUsesCacheUntilInvalidated(t *testing.T) {
	counter := newFakeCounter()
	counter.set("vm-1", entity.PartyVenueManager, 2)
	feed := &fakeFeed{}
	c := &memCache{}
	svc := New(counter, feed, discardLogger(), WithCache(c, time.Minute))
	defer svc.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		total, err := svc.Total(ctx, "vm-1", entity.PartyVenueManager)
		if err != nil {
			t.Fatalf("total: %v", err)
		}
		if total != 2 {
			t.Fatalf("expected 2, got %d", total)
		}
	}
	if counter.callCount() != 1 {
		t.Fatalf("expected one store read, got %d", counter.callCount())
	}

	counter.set("vm-1", entity.PartyVenueManager, 3)
	feed.publish(venueEvent)

	key := cacheKey("vm-1", entity.PartyVenueManager)
	deadline := time.Now().Add(2 * time.Second)
	for c.has(key) {
		if time.Now().After(deadline) {
			t.Fatal("cache entry was not invalidated")
		}
		time.Sleep(5 * time.Millisecond)
	}

	total, err := svc.Total(ctx, "vm-1", entity.PartyVenueManager)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 after invalidation, got %d", total)
	}
}
