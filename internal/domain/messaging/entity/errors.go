package entity

import "github.com/vadim/gigfinder/internal/apperr"

// Domain errors for messaging
var (
	ErrConversationNotFound = apperr.NotFound("conversation not found")
	ErrGigNotFound          = apperr.NotFound("gig not found")
	ErrMessageNotFound      = apperr.NotFound("message not found")
	ErrConversationInactive = apperr.InvalidState("conversation is not active")
	ErrMessageIDConflict    = apperr.InvalidState("message id belongs to a different message")
	ErrNotParty             = apperr.Permission("user is not a party to this conversation")
	ErrNotGigOwner          = apperr.Permission("venue manager does not own this gig")
	ErrEmptyMessage         = apperr.Invalid("body", "cannot be empty")
	ErrMessageTooLong       = apperr.Invalid("body", "exceeds maximum length")
	ErrInvalidPartyKind     = apperr.Invalid("kind", "must be venue_manager or artist")
	ErrInvalidArtistKind    = apperr.Invalid("artist_kind", "must be musician or band")
)
