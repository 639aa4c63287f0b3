package entity

// ChangeEvent is published on every write to a conversation or its messages
type ChangeEvent struct {
	ConversationID string `json:"conversation_id"`
	VenueManagerID string `json:"venue_manager_id"`
	ArtistID       string `json:"artist_id"`
	MessageID      string `json:"message_id,omitempty"`

	// Resync asks subscribers to recompute from the store, events may have been missed
	Resync bool `json:"-"`
	// Err reports a failure of the underlying live query
	Err error `json:"-"`
}

// EventFor builds the change event of conv
func EventFor(conv *Conversation, messageID string) ChangeEvent {
	return ChangeEvent{
		ConversationID: conv.ID,
		VenueManagerID: conv.VenueManagerID,
		ArtistID:       conv.ArtistID,
		MessageID:      messageID,
	}
}

// Involves reports whether the event concerns the given party
func (e ChangeEvent) Involves(userID string, kind PartyKind) bool {
	if kind == PartyVenueManager {
		return e.VenueManagerID == userID
	}
	return e.ArtistID == userID
}
