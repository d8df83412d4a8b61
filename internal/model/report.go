package model

// MilestoneReport is the point-in-time pipeline summary.
type MilestoneReport struct {
	Total          int            `json:"total"`
	Qualified      int            `json:"qualified"`
	InProgress     int            `json:"inProgress"`
	Hired          int            `json:"hired"`
	HiredPerRegion map[string]int `json:"hiredPerRegion"`
}

// HiredRow is one currently hired participant with their site and, when
// present, the current return-of-service record.
type HiredRow struct {
	StatusID        int64 // participant_status.id, the pagination key
	ParticipantID   int64
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	PostalCode      string
	Hire            HiredData
	SiteID          int64 // employer_sites.site_id
	SiteName        string
	HealthAuthority string
	ROSStartDate    string // empty without a current ROS record
}

// ROSRow is one current return-of-service record.
type ROSRow struct {
	ParticipantID   int64
	FirstName       string
	LastName        string
	Email           string
	Status          ROSStatus
	Data            ROSData
	SiteID          int64 // employer_sites.site_id
	SiteName        string
	HealthAuthority string
}

// PSIRow is a participant assigned to a cohort.
type PSIRow struct {
	ParticipantID   int64
	FirstName       string
	LastName        string
	Email           string
	InstituteName   string
	CohortName      string
	CohortStartDate string
	CohortEndDate   string
	HealthAuthority string
	CurrentStatus   string // empty when never engaged
}
