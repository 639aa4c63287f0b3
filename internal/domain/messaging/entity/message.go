package entity

import (
	"time"
	"unicode/utf8"
)

// MessageKind represents the type of message
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
)

// Message is an immutable entry of a conversation. IsRead only moves from
// false to true.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	GigID          string      `json:"gig_id"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	SenderKind     PartyKind   `json:"sender_kind"`
	RecipientID    string      `json:"recipient_id"`
	RecipientName  string      `json:"recipient_name"`
	Body           string      `json:"body"`
	Kind           MessageKind `json:"kind"`
	IsRead         bool        `json:"is_read"`
	Timestamp      time.Time   `json:"timestamp"`
}

// MaxBodyLength is the maximum length of a message body in characters
const MaxBodyLength = 2000

// PreviewLength is the length of the last-message preview kept on a conversation
const PreviewLength = 120

// ValidateBody validates the body of a message
func ValidateBody(body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return ErrMessageTooLong
	}
	return nil
}

// Preview truncates body to PreviewLength characters
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= PreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:PreviewLength-1]) + "…"
}
