package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is a change event delivered by the Listener
type Notification struct {
	Payload string

	// Resync is set on the first event after a reconnect. Notifications sent
	// while the listener was down are lost, so subscribers should recompute.
	Resync bool

	// Err is set when the listening connection failed. The listener keeps
	// reconnecting on its own.
	Err error
}

// Listener is the live-query primitive: it holds one dedicated connection
// LISTENing on a channel and fans every notification out to subscribers.
// Handlers run on the listener goroutine and must not block.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	logger  *slog.Logger

	mu       sync.RWMutex
	handlers map[uint64]func(Notification)
	nextID   uint64
}

// NewListener creates a listener for channel
func NewListener(pool *pgxpool.Pool, channel string, logger *slog.Logger) *Listener {
	return &Listener{
		pool:     pool,
		channel:  channel,
		logger:   logger,
		handlers: make(map[uint64]func(Notification)),
	}
}

// Channel returns the NOTIFY channel name
func (l *Listener) Channel() string {
	return l.channel
}

// Subscribe registers fn and returns a function that removes it
func (l *Listener) Subscribe(fn func(Notification)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.handlers, id)
			l.mu.Unlock()
		})
	}
}

// Run listens until ctx is cancelled, reconnecting with exponential backoff
func (l *Listener) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second

	connectedBefore := false
	for {
		err := l.listen(ctx, func() {
			b.Reset()
			if connectedBefore {
				l.dispatch(Notification{Resync: true})
			}
			connectedBefore = true
			l.logger.Info("listening for changes", "channel", l.channel)
		})
		if ctx.Err() != nil {
			return
		}

		l.logger.Error("change listener failed", "channel", l.channel, "error", err)
		l.dispatch(Notification{Err: err})

		select {
		case <-time.After(b.NextBackOff()):
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) listen(ctx context.Context, onConnected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listening on %s: %w", l.channel, err)
	}
	onConnected()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			// The connection may still be LISTENing; do not return it to the pool.
			conn.Hijack().Close(context.Background())
			return fmt.Errorf("waiting for notification: %w", err)
		}
		l.dispatch(Notification{Payload: n.Payload})
	}
}

func (l *Listener) dispatch(n Notification) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, fn := range l.handlers {
		fn(n)
	}
}
