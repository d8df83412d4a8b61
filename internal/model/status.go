package model

import (
	"encoding/json"
	"time"
)

// Status is one step of a participant's hiring pipeline.
type Status string

const (
	StatusOpen         Status = "open"
	StatusProspecting  Status = "prospecting"
	StatusInterviewing Status = "interviewing"
	StatusOfferMade    Status = "offer_made"
	StatusHired        Status = "hired"
	StatusRejected     Status = "rejected"
	StatusArchived     Status = "archived"
)

var knownStatuses = map[Status]bool{
	StatusOpen:         true,
	StatusProspecting:  true,
	StatusInterviewing: true,
	StatusOfferMade:    true,
	StatusHired:        true,
	StatusRejected:     true,
	StatusArchived:     true,
}

// Valid reports whether s is one of the pipeline statuses.
func (s Status) Valid() bool { return knownStatuses[s] }

// InProgress reports whether s counts as an active engagement in reports.
func (s Status) InProgress() bool {
	return s == StatusProspecting || s == StatusInterviewing || s == StatusOfferMade
}

// StatusRecord is one row of the append-only participant_status table.  A
// row is never edited after insert except for clearing Current when a newer
// row supersedes it.  ID doubles as the optimistic-concurrency token.
type StatusRecord struct {
	ID            int64           `json:"id"`             // participant_status.id
	ParticipantID int64           `json:"participantId"`  // participant_status.participant_id
	EmployerID    *string         `json:"employerId"`     // participant_status.employer_id (nullable)
	SiteID        *int64          `json:"siteId"`         // participant_status.site_id (nullable)
	Status        Status          `json:"status"`         // participant_status.status
	Data          json.RawMessage `json:"data,omitempty"` // participant_status.data
	Current       bool            `json:"current"`        // participant_status.is_current
	CreatedAt     time.Time       `json:"createdAt"`      // participant_status.created_at
}
