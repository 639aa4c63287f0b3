package entity

import (
	band "github.com/vadim/gigfinder/internal/domain/band/entity"
)

// InvitationNotice is a pending invitation annotated for display
type InvitationNotice struct {
	band.Invitation
	EffectiveStatus band.Status `json:"effective_status"`
}

// ApplicationNotice is a pending application annotated for display
type ApplicationNotice struct {
	band.Application
	EffectiveStatus band.Status `json:"effective_status"`
}

// Pending is a user's outstanding invitations and applications.
// Unread message counts are not part of it.
type Pending struct {
	Invitations  []InvitationNotice  `json:"invitations"`
	Applications []ApplicationNotice `json:"applications"`
}

// Count returns the number of notices still actionable as of the
// annotation time
func (p *Pending) Count() int {
	n := 0
	for _, inv := range p.Invitations {
		if inv.EffectiveStatus == band.StatusPending {
			n++
		}
	}
	for _, app := range p.Applications {
		if app.EffectiveStatus == band.StatusPending {
			n++
		}
	}
	return n
}
