// Package transition decides whether a participant may move from one
// pipeline status to another.  It never touches storage.
package transition

import (
	"slices"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
)

// Rejection names why a transition was refused.  The empty value means the
// transition is allowed.
type Rejection string

const (
	Allowed                 Rejection = ""
	AlreadyHired            Rejection = "ALREADY_HIRED"
	InvalidStatus           Rejection = "INVALID_STATUS"
	InvalidStatusTransition Rejection = "INVALID_STATUS_TRANSITION"
	InvalidArchive          Rejection = "INVALID_ARCHIVE"
)

// OK reports whether the transition was allowed.
func (r Rejection) OK() bool { return r == Allowed }

// edges is the legal transition graph.  rejected -> prospecting is the only
// back edge (re-engage).
var edges = map[model.Status][]model.Status{
	model.StatusOpen:         {model.StatusProspecting},
	model.StatusProspecting:  {model.StatusInterviewing, model.StatusRejected},
	model.StatusInterviewing: {model.StatusOfferMade, model.StatusRejected},
	model.StatusOfferMade:    {model.StatusHired, model.StatusRejected},
	model.StatusRejected:     {model.StatusProspecting},
	model.StatusHired:        {model.StatusArchived},
}

// Validate decides whether a participant whose current status is current
// (nil for a participant nobody has engaged) may be moved to requested by
// an actor holding role.
func Validate(current *model.Status, requested model.Status, role auth.Role) Rejection {
	if !requested.Valid() || requested == model.StatusOpen {
		return InvalidStatus
	}
	from := model.StatusOpen
	if current != nil {
		from = *current
	}
	if from == model.StatusHired && requested != model.StatusArchived {
		return AlreadyHired
	}
	if requested == model.StatusArchived {
		if from != model.StatusHired {
			return InvalidArchive
		}
		if !role.Capabilities().Has(auth.CanArchive) {
			return InvalidStatusTransition
		}
		return Allowed
	}
	if !role.Capabilities().Has(auth.CanTransition) {
		return InvalidStatusTransition
	}
	if !slices.Contains(edges[from], requested) {
		return InvalidStatusTransition
	}
	return Allowed
}

// CheckSite reports whether an actor with role and access to userSites may
// act on site.  A zero site means the transition is not site-bound.
// Ministry and superuser actors may act on any site.
func CheckSite(role auth.Role, site int64, userSites []int64) bool {
	if site == 0 || role.IsMinistry() {
		return true
	}
	return slices.Contains(userSites, site)
}
