package dao

import (
	"encoding/json"
	"log/slog"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
)

// ChangeFeed decodes listener notifications into conversation change events
type ChangeFeed struct {
	listener *database.Listener
	logger   *slog.Logger
}

// NewChangeFeed creates a change feed on top of listener
func NewChangeFeed(listener *database.Listener, logger *slog.Logger) *ChangeFeed {
	return &ChangeFeed{listener: listener, logger: logger}
}

// Subscribe registers fn for every change event. fn must not block.
func (f *ChangeFeed) Subscribe(fn func(entity.ChangeEvent)) func() {
	return f.listener.Subscribe(func(n database.Notification) {
		switch {
		case n.Err != nil:
			fn(entity.ChangeEvent{Err: n.Err})
		case n.Resync:
			fn(entity.ChangeEvent{Resync: true})
		default:
			var ev entity.ChangeEvent
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				f.logger.Warn("dropping malformed change event", "payload", n.Payload, "error", err)
				return
			}
			fn(ev)
		}
	})
}
