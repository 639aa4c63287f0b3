package housekeeping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
)

// ConversationStore exposes what duplicate reconciliation needs
type ConversationStore interface {
	FindDuplicateKeys(ctx context.Context, limit int) ([][2]string, error)
	FindActive(ctx context.Context, gigID, artistID string) ([]entity.Conversation, error)
	Merge(ctx context.Context, keeper, duplicate *entity.Conversation) error
}

// ReconcileConversations merges leftover duplicate active conversations of
// one (gig, artist) pair into the oldest, which is the one every
// concurrent opener converged on.
func ReconcileConversations(store ConversationStore, batchSize int, logger *slog.Logger) Task {
	return Task{
		Name: "reconcile_conversations",
		Run: func(ctx context.Context) error {
			keys, err := store.FindDuplicateKeys(ctx, batchSize)
			if err != nil {
				return fmt.Errorf("finding duplicate conversations: %w", err)
			}

			for _, key := range keys {
				convs, err := store.FindActive(ctx, key[0], key[1])
				if err != nil {
					return fmt.Errorf("loading conversations of gig %s: %w", key[0], err)
				}
				if len(convs) < 2 {
					continue
				}

				keeper := &convs[0]
				for i := 1; i < len(convs); i++ {
					if err := store.Merge(ctx, keeper, &convs[i]); err != nil {
						return fmt.Errorf("merging conversation %s into %s: %w", convs[i].ID, keeper.ID, err)
					}
					logger.Info("merged duplicate conversation",
						"gig_id", key[0],
						"artist_id", key[1],
						"keeper_id", keeper.ID,
						"duplicate_id", convs[i].ID,
					)
				}
			}
			return nil
		},
	}
}

// Reaper stores the expired status on pending invitations and applications
type Reaper interface {
	ReapExpired(ctx context.Context, limit int) (invitations, applications int, err error)
}

// ReapExpired marks pending invitations and applications past expiry as
// expired, batchSize of each per pass
func ReapExpired(reaper Reaper, batchSize int, logger *slog.Logger) Task {
	return Task{
		Name: "reap_expired",
		Run: func(ctx context.Context) error {
			invitations, applications, err := reaper.ReapExpired(ctx, batchSize)
			if err != nil {
				return err
			}
			if invitations > 0 || applications > 0 {
				logger.Info("expired pending items", "invitations", invitations, "applications", applications)
			}
			return nil
		},
	}
}
