package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
)

const conversationColumns = `
	id, gig_id, gig_title, venue_manager_id, venue_manager_name,
	artist_id, artist_name, artist_kind, last_message, last_message_at,
	last_message_sender_id, unread_venue_manager, unread_artist, is_active,
	created_at, updated_at`

// ConversationPostgres implements conversation repository for PostgreSQL
type ConversationPostgres struct {
	pool    *pgxpool.Pool
	channel string
}

// NewConversationPostgres creates a new PostgreSQL conversation repository.
// Every write publishes an entity.ChangeEvent on channel.
func NewConversationPostgres(pool *pgxpool.Pool, channel string) *ConversationPostgres {
	return &ConversationPostgres{pool: pool, channel: channel}
}

// Create inserts a new conversation
func (r *ConversationPostgres) Create(ctx context.Context, conv *entity.Conversation) error {
	query := `
		INSERT INTO conversations (
			id, gig_id, gig_title, venue_manager_id, venue_manager_name,
			artist_id, artist_name, artist_kind, unread_venue_manager, unread_artist,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9, $10, $10)
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, query,
		conv.ID,
		conv.GigID,
		conv.GigTitle,
		conv.VenueManagerID,
		conv.VenueManagerName,
		conv.ArtistID,
		conv.ArtistName,
		conv.ArtistKind,
		conv.IsActive,
		conv.CreatedAt,
	)
	if err != nil {
		return database.Classify("creating conversation", err)
	}

	if err := publish(ctx, tx, r.channel, entity.EventFor(conv, "")); err != nil {
		return err
	}

	return database.Classify("committing conversation", tx.Commit(ctx))
}

// GetByID retrieves a conversation by ID. Returns nil when it does not exist.
func (r *ConversationPostgres) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conv, err := scanConversation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, database.Classify("getting conversation", err)
	}
	return conv, nil
}

// FindActive returns the active conversations of (gigID, artistID), oldest first
func (r *ConversationPostgres) FindActive(ctx context.Context, gigID, artistID string) ([]entity.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE gig_id = $1 AND artist_id = $2 AND is_active
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, gigID, artistID)
	if err != nil {
		return nil, database.Classify("querying conversations", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// ListByParty returns active conversations of a party, most recent activity first
func (r *ConversationPostgres) ListByParty(ctx context.Context, userID string, kind entity.PartyKind) ([]entity.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE ` + partyColumn(kind) + ` = $1 AND is_active
		ORDER BY last_message_at DESC NULLS LAST, updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.Classify("querying conversations", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// SumUnread sums the party's unread counter over all its active conversations
func (r *ConversationPostgres) SumUnread(ctx context.Context, userID string, kind entity.PartyKind) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(%s), 0)
		FROM conversations
		WHERE %s = $1 AND is_active
	`, unreadColumn(kind), partyColumn(kind))

	var total int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, database.Classify("summing unread", err)
	}
	return total, nil
}

// MarkRead zeroes the reader's counter and flags messages addressed to the reader as read
func (r *ConversationPostgres) MarkRead(ctx context.Context, conv *entity.Conversation, readerKind entity.PartyKind) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE conversations SET %s = 0, updated_at = $2 WHERE id = $1`, unreadColumn(readerKind))
	if _, err := tx.Exec(ctx, query, conv.ID, time.Now()); err != nil {
		return database.Classify("resetting unread counter", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND recipient_id = $2 AND NOT is_read
	`, conv.ID, conv.PartyID(readerKind))
	if err != nil {
		return database.Classify("marking messages read", err)
	}

	if err := publish(ctx, tx, r.channel, entity.EventFor(conv, "")); err != nil {
		return err
	}

	return database.Classify("committing read", tx.Commit(ctx))
}

// Deactivate marks a conversation inactive
func (r *ConversationPostgres) Deactivate(ctx context.Context, conv *entity.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `UPDATE conversations SET is_active = FALSE, updated_at = $2 WHERE id = $1`, conv.ID, time.Now())
	if err != nil {
		return database.Classify("deactivating conversation", err)
	}

	if err := publish(ctx, tx, r.channel, entity.EventFor(conv, "")); err != nil {
		return err
	}

	return database.Classify("committing deactivation", tx.Commit(ctx))
}

// Merge folds the duplicate conversation into keeper: messages move over,
// unread counters add up, and the duplicate is deactivated.
func (r *ConversationPostgres) Merge(ctx context.Context, keeper, duplicate *entity.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE messages SET conversation_id = $1 WHERE conversation_id = $2`, keeper.ID, duplicate.ID); err != nil {
		return database.Classify("moving messages", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations k SET
			unread_venue_manager = k.unread_venue_manager + d.unread_venue_manager,
			unread_artist = k.unread_artist + d.unread_artist,
			last_message = CASE WHEN d.last_message_at > k.last_message_at OR k.last_message_at IS NULL
				THEN d.last_message ELSE k.last_message END,
			last_message_sender_id = CASE WHEN d.last_message_at > k.last_message_at OR k.last_message_at IS NULL
				THEN d.last_message_sender_id ELSE k.last_message_sender_id END,
			last_message_at = GREATEST(k.last_message_at, d.last_message_at),
			updated_at = $3
		FROM conversations d
		WHERE k.id = $1 AND d.id = $2 AND d.is_active
	`, keeper.ID, duplicate.ID, time.Now())
	if err != nil {
		return database.Classify("merging counters", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET is_active = FALSE, unread_venue_manager = 0, unread_artist = 0, updated_at = $2
		WHERE id = $1
	`, duplicate.ID, time.Now())
	if err != nil {
		return database.Classify("deactivating duplicate", err)
	}

	if err := publish(ctx, tx, r.channel, entity.EventFor(keeper, "")); err != nil {
		return err
	}

	return database.Classify("committing merge", tx.Commit(ctx))
}

// FindDuplicateKeys returns (gig, artist) pairs with more than one active conversation
func (r *ConversationPostgres) FindDuplicateKeys(ctx context.Context, limit int) ([][2]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT gig_id, artist_id
		FROM conversations
		WHERE is_active
		GROUP BY gig_id, artist_id
		HAVING COUNT(*) > 1
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, database.Classify("finding duplicates", err)
	}
	defer rows.Close()

	var keys [][2]string
	for rows.Next() {
		var key [2]string
		if err := rows.Scan(&key[0], &key[1]); err != nil {
			return nil, fmt.Errorf("scanning duplicate key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, database.Classify("iterating duplicates", rows.Err())
}

// publish sends a change event inside tx; it is delivered on commit
func publish(ctx context.Context, tx pgx.Tx, channel string, ev entity.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload)); err != nil {
		return database.Classify("publishing change", err)
	}
	return nil
}

func partyColumn(kind entity.PartyKind) string {
	if kind == entity.PartyVenueManager {
		return "venue_manager_id"
	}
	return "artist_id"
}

func unreadColumn(kind entity.PartyKind) string {
	if kind == entity.PartyVenueManager {
		return "unread_venue_manager"
	}
	return "unread_artist"
}

// scanConversation scans a single conversation row
func scanConversation(row pgx.Row) (*entity.Conversation, error) {
	var conv entity.Conversation

	err := row.Scan(
		&conv.ID,
		&conv.GigID,
		&conv.GigTitle,
		&conv.VenueManagerID,
		&conv.VenueManagerName,
		&conv.ArtistID,
		&conv.ArtistName,
		&conv.ArtistKind,
		&conv.LastMessage,
		&conv.LastMessageAt,
		&conv.LastMessageSenderID,
		&conv.UnreadCount.VenueManager,
		&conv.UnreadCount.Artist,
		&conv.IsActive,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	return &conv, nil
}

// scanConversations scans multiple conversation rows
func scanConversations(rows pgx.Rows) ([]entity.Conversation, error) {
	var conversations []entity.Conversation

	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}

	return conversations, database.Classify("iterating conversations", rows.Err())
}
