// Package unread maintains live per-user unread totals across conversations.
package unread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vadim/gigfinder/internal/cache"
	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
	"github.com/vadim/gigfinder/internal/retry"
)

// Counter sums a party's unread counters over its active conversations
type Counter interface {
	SumUnread(ctx context.Context, userID string, kind entity.PartyKind) (int, error)
}

// ChangeFeed delivers conversation change events
type ChangeFeed interface {
	Subscribe(fn func(entity.ChangeEvent)) func()
}

// Service computes unread totals and keeps subscribers up to date
type Service struct {
	counter Counter
	feed    ChangeFeed
	logger  *slog.Logger
	retry   retry.Policy

	cache         cache.Cache
	ttl           time.Duration
	stopInvalider func()
}

// Option configures a Service
type Option func(*Service)

// WithCache serves Total from c. Entries are dropped on every change event
// that involves the user and otherwise live for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// New creates a new unread service
func New(counter Counter, feed ChangeFeed, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		counter: counter,
		feed:    feed,
		logger:  logger,
		retry:   retry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		s.stopInvalider = feed.Subscribe(s.invalidate)
	}
	return s
}

// Close stops cache invalidation. Open subscriptions are not affected.
func (s *Service) Close() {
	if s.stopInvalider != nil {
		s.stopInvalider()
	}
}

// Total returns the current unread total of a party
func (s *Service) Total(ctx context.Context, userID string, kind entity.PartyKind) (int, error) {
	if _, err := entity.ParsePartyKind(string(kind)); err != nil {
		return 0, err
	}

	if s.cache != nil {
		if total, ok := s.cached(ctx, userID, kind); ok {
			return total, nil
		}
	}

	total, err := retry.Value(ctx, s.retry, func() (int, error) {
		return s.counter.SumUnread(ctx, userID, kind)
	})
	if err != nil {
		return 0, fmt.Errorf("summing unread: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(userID, kind), strconv.Itoa(total), s.ttl); err != nil {
			s.logger.Warn("failed to cache unread total", "user_id", userID, "error", err)
		}
	}
	return total, nil
}

func (s *Service) cached(ctx context.Context, userID string, kind entity.PartyKind) (int, bool) {
	raw, err := s.cache.Get(ctx, cacheKey(userID, kind))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("unread cache read failed", "user_id", userID, "error", err)
		}
		return 0, false
	}
	total, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return total, true
}

// invalidate runs on the feed goroutine, so the cache round trip is detached
func (s *Service) invalidate(ev entity.ChangeEvent) {
	if ev.Err != nil || ev.Resync {
		return
	}
	keys := []string{
		cacheKey(ev.VenueManagerID, entity.PartyVenueManager),
		cacheKey(ev.ArtistID, entity.PartyArtist),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Del(ctx, keys...); err != nil {
			s.logger.Warn("failed to invalidate unread cache", "conversation_id", ev.ConversationID, "error", err)
		}
	}()
}

func cacheKey(userID string, kind entity.PartyKind) string {
	return "unread:" + string(kind) + ":" + userID
}

// SubscribeToTotalUnreadCount computes the party's total unread count and
// calls callback with it, then again after every change to one of the
// party's conversations. Callbacks for one subscription never overlap and
// arrive in change order; rapid changes may be coalesced into one callback.
//
// A failed recompute is logged and skipped, leaving the last delivered total
// in place. No callback starts after Unsubscribe returns.
func (s *Service) SubscribeToTotalUnreadCount(userID string, kind entity.PartyKind, callback func(total int)) (*Subscription, error) {
	if _, err := entity.ParsePartyKind(string(kind)); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		userID:   userID,
		kind:     kind,
		callback: callback,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	sub.signal <- struct{}{}
	sub.stopFeed = s.feed.Subscribe(func(ev entity.ChangeEvent) {
		switch {
		case ev.Err != nil:
			s.logger.Warn("unread subscription lost its change feed; keeping last total",
				"user_id", userID, "kind", kind, "error", ev.Err)
		case ev.Resync || ev.Involves(userID, kind):
			sub.notify()
		}
	})

	go sub.run(ctx, s)
	return sub, nil
}

// Subscription is a live unread total. Call Unsubscribe to release it.
type Subscription struct {
	userID   string
	kind     entity.PartyKind
	callback func(int)

	signal   chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopFeed func()
	once     sync.Once
	closed   atomic.Bool
}

// notify schedules a recompute. Pending signals are coalesced.
func (sub *Subscription) notify() {
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

// Unsubscribe stops the subscription. It is idempotent, never blocks and
// may be called from inside the callback. A callback already running keeps
// running until it returns; no callback starts afterwards.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.closed.Store(true)
		sub.cancel()
		sub.stopFeed()
	})
}

// Done is closed once the subscription goroutine has exited, which is after
// the last callback has returned. Waiting on it from inside the callback
// deadlocks.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

func (sub *Subscription) run(ctx context.Context, s *Service) {
	defer close(sub.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.signal:
		}

		if sub.closed.Load() {
			return
		}

		total, err := s.counter.SumUnread(ctx, sub.userID, sub.kind)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("failed to recompute unread total; keeping last total",
				"user_id", sub.userID, "kind", sub.kind, "error", err)
			continue
		}

		sub.deliver(total)
	}
}

func (sub *Subscription) deliver(total int) {
	if sub.closed.Load() {
		return
	}
	sub.callback(total)
}
