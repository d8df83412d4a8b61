package model

import (
	"strings"
	"time"
)

// Participant is an applicant tracked through the hiring pipeline.  Rows are
// created by an expression of interest and only hard-deleted in local
// environments.
//
// PreferredLocation holds a comma-separated list of health regions.
type Participant struct {
	ID                int64     `json:"id"`                // participants.id
	FirstName         string    `json:"firstName"`         // participants.first_name
	LastName          string    `json:"lastName"`          // participants.last_name
	Email             string    `json:"emailAddress"`      // participants.email
	PhoneNumber       string    `json:"phoneNumber"`       // participants.phone_number
	PostalCode        string    `json:"postalCode"`        // participants.postal_code
	PreferredLocation string    `json:"preferredLocation"` // participants.preferred_location
	Interested        string    `json:"interested"`        // participants.interested (yes, no, withdrawn)
	CRCClear          string    `json:"crcClear"`          // participants.crc_clear (yes, no)
	CreatedAt         time.Time `json:"createdAt"`         // participants.created_at
	UpdatedAt         time.Time `json:"updatedAt"`         // participants.updated_at
}

// Regions splits PreferredLocation into trimmed region names.
func (p Participant) Regions() []string {
	var out []string
	for _, r := range strings.Split(p.PreferredLocation, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// ParticipantWithStatus pairs a participant with its current status row,
// which is nil for participants nobody has engaged yet.
type ParticipantWithStatus struct {
	Participant
	CurrentStatus *StatusRecord `json:"currentStatus"`
}
