package model

import "time"

// PostSecondaryInstitute offers cohorts participants may be assigned to.
type PostSecondaryInstitute struct {
	ID              int64     `json:"id"`              // post_secondary_institutions.id
	InstituteName   string    `json:"instituteName"`   // post_secondary_institutions.institute_name
	HealthAuthority string    `json:"healthAuthority"` // post_secondary_institutions.health_authority
	PostalCode      string    `json:"postalCode"`      // post_secondary_institutions.postal_code
	AvailableSeats  int       `json:"availableSeats"`  // post_secondary_institutions.available_seats
	CreatedAt       time.Time `json:"createdAt"`       // post_secondary_institutions.created_at
}

// Cohort is one intake of an institute's program.  Dates are YYYY-MM-DD.
type Cohort struct {
	ID         int64     `json:"id"`         // cohorts.id
	PSIID      int64     `json:"psiId"`      // cohorts.psi_id
	CohortName string    `json:"cohortName"` // cohorts.cohort_name
	StartDate  string    `json:"startDate"`  // cohorts.start_date
	EndDate    string    `json:"endDate"`    // cohorts.end_date
	CohortSize int       `json:"cohortSize"` // cohorts.cohort_size
	Assigned   int       `json:"assigned"`   // COUNT of cohort_participants, read-only
	CreatedAt  time.Time `json:"createdAt"`  // cohorts.created_at
}
