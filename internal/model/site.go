package model

import "time"

// EmployerSite is a hiring location.  SiteID is the user-facing number;
// ID is the surrogate key referenced by status and ROS rows.
type EmployerSite struct {
	ID              int64     `json:"id"`              // employer_sites.id
	SiteID          int64     `json:"siteId"`          // employer_sites.site_id
	SiteName        string    `json:"siteName"`        // employer_sites.site_name
	HealthAuthority string    `json:"healthAuthority"` // employer_sites.health_authority
	OperatorName    string    `json:"operatorName"`    // employer_sites.operator_name
	City            string    `json:"city"`            // employer_sites.city
	Allocation      int       `json:"allocation"`      // employer_sites.allocation
	CreatedAt       time.Time `json:"createdAt"`       // employer_sites.created_at
	UpdatedAt       time.Time `json:"updatedAt"`       // employer_sites.updated_at
}
