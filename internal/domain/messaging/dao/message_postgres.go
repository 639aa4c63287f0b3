package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/database"
	"github.com/vadim/gigfinder/internal/domain/messaging/entity"
)

const messageColumns = `
	id, conversation_id, gig_id, sender_id, sender_name, sender_kind,
	recipient_id, recipient_name, body, kind, is_read, created_at`

// MessagePostgres implements message repository for PostgreSQL
type MessagePostgres struct {
	pool    *pgxpool.Pool
	channel string
}

// NewMessagePostgres creates a new PostgreSQL message repository
func NewMessagePostgres(pool *pgxpool.Pool, channel string) *MessagePostgres {
	return &MessagePostgres{pool: pool, channel: channel}
}

// Append inserts msg and, in the same transaction, updates the parent
// conversation's last-message fields and bumps the recipient's unread
// counter. A message id that already exists is a retry: nothing changes
// and inserted is false.
func (r *MessagePostgres) Append(ctx context.Context, conv *entity.Conversation, msg *entity.Message) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, database.Classify("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		msg.ID,
		msg.ConversationID,
		msg.GigID,
		msg.SenderID,
		msg.SenderName,
		msg.SenderKind,
		msg.RecipientID,
		msg.RecipientName,
		msg.Body,
		msg.Kind,
		msg.Timestamp,
	)
	if err != nil {
		return false, database.Classify("inserting message", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	query := fmt.Sprintf(`
		UPDATE conversations SET
			last_message = $2,
			last_message_at = $3,
			last_message_sender_id = $4,
			%[1]s = %[1]s + 1,
			updated_at = $3
		WHERE id = $1
	`, unreadColumn(msg.SenderKind.Other()))

	tag, err = tx.Exec(ctx, query, msg.ConversationID, entity.Preview(msg.Body), msg.Timestamp, msg.SenderID)
	if err != nil {
		return false, database.Classify("updating conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return false, entity.ErrConversationNotFound
	}

	if err := publish(ctx, tx, r.channel, entity.EventFor(conv, msg.ID)); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, database.Classify("committing message", err)
	}
	return true, nil
}

// GetByID retrieves a message by ID. Returns nil when it does not exist.
func (r *MessagePostgres) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		return nil, database.Classify("getting message", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

// ListByConversation returns all messages of a conversation, oldest first
func (r *MessagePostgres) ListByConversation(ctx context.Context, conversationID string) ([]entity.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, database.Classify("querying messages", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListAfter returns messages newer than afterID, oldest first. An empty
// afterID lists the whole conversation; an afterID outside the conversation
// matches nothing.
func (r *MessagePostgres) ListAfter(ctx context.Context, conversationID, afterID string) ([]entity.Message, error) {
	if afterID == "" {
		return r.ListByConversation(ctx, conversationID)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		  AND (created_at, id) > (
			SELECT created_at, id FROM messages WHERE id = $2 AND conversation_id = $1
		  )
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, conversationID, afterID)
	if err != nil {
		return nil, database.Classify("querying new messages", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]entity.Message, error) {
	var messages []entity.Message
	for rows.Next() {
		var msg entity.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.GigID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderKind,
			&msg.RecipientID,
			&msg.RecipientName,
			&msg.Body,
			&msg.Kind,
			&msg.IsRead,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, database.Classify("iterating messages", rows.Err())
}
