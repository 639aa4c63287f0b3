package entity

import "github.com/vadim/gigfinder/internal/apperr"

// Domain errors for bands
var (
	ErrBandNotFound        = apperr.NotFound("band not found")
	ErrInvitationNotFound  = apperr.NotFound("invitation not found")
	ErrApplicationNotFound = apperr.NotFound("application not found")
	ErrNotPending          = apperr.InvalidState("invitation is not pending")
	ErrExpired             = apperr.InvalidState("invitation has expired")
	ErrAlreadyMember       = apperr.InvalidState("user is already a band member")
	ErrNotInvitee          = apperr.Permission("invitation is not addressed to this user")
	ErrNotBandAdmin        = apperr.Permission("only a band leader or admin can invite")
	ErrInvalidRole         = apperr.Invalid("role", "must be leader, admin, member or guest")
)
