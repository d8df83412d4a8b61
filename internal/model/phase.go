package model

import "time"

// Phase is a time-boxed funding window.  Hires are attributed to a phase by
// their hire date for reporting only.
type Phase struct {
	ID        int64     `json:"id"`        // phases.id
	Name      string    `json:"name"`      // phases.name
	StartDate string    `json:"startDate"` // phases.start_date
	EndDate   string    `json:"endDate"`   // phases.end_date
	CreatedAt time.Time `json:"createdAt"` // phases.created_at
}

// SiteAllocation is a site's hiring capacity within a phase.
type SiteAllocation struct {
	ID         int64 `json:"id"`         // site_allocations.id
	PhaseID    int64 `json:"phaseId"`    // site_allocations.phase_id
	SiteID     int64 `json:"siteId"`     // site_allocations.site_id
	Allocation int   `json:"allocation"` // site_allocations.allocation
	Hired      int   `json:"hired"`      // hires in the phase window, read-only
}
