package model

import "time"

// ROSStatus is the state of a return-of-service record.
type ROSStatus string

const (
	ROSAssignedSameSite ROSStatus = "assigned-same-site"
	ROSAssignedNewSite  ROSStatus = "assigned-new-site"
)

// ROSData is the payload stored with each return-of-service row.  Date is
// the start of the one-year service window.
type ROSData struct {
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	EmploymentType string `json:"employmentType" validate:"required,oneof=full-time part-time casual"`
	PositionType   string `json:"positionType" validate:"required,oneof=permanent temporary"`
}

// ROSRecord is one row of the append-only ros_status table.  Same
// current-row discipline as StatusRecord.
type ROSRecord struct {
	ID            int64     `json:"id"`            // ros_status.id
	ParticipantID int64     `json:"participantId"` // ros_status.participant_id
	SiteID        int64     `json:"siteId"`        // ros_status.site_id
	Status        ROSStatus `json:"status"`        // ros_status.status
	Data          ROSData   `json:"data"`          // ros_status.data
	PreviousID    *int64    `json:"previousId"`    // ros_status.previous_id, the superseded row
	CreatedBy     string    `json:"createdBy"`     // ros_status.created_by
	Current       bool      `json:"current"`       // ros_status.is_current
	CreatedAt     time.Time `json:"createdAt"`     // ros_status.created_at
}
