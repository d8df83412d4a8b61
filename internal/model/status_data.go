package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StatusData is the payload attached to a status transition.  Each status
// has its own concrete type; DecodeStatusData picks it from the target
// status so the payload is never handled as untyped JSON.
type StatusData interface {
	StatusKind() Status
}

// ProspectingData accompanies an engage (open or rejected -> prospecting).
type ProspectingData struct{}

// InterviewingData records when the participant was first contacted.
type InterviewingData struct {
	ContactedDate string `json:"contacted_at,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// OfferMadeData carries no fields.
type OfferMadeData struct{}

// HiredData binds the hire to an employer site.
type HiredData struct {
	Site               int64  `json:"site" validate:"required,gt=0"`
	HiredDate          string `json:"hiredDate" validate:"required,datetime=2006-01-02"`
	StartDate          string `json:"startDate" validate:"required,datetime=2006-01-02"`
	PositionType       string `json:"positionType" validate:"required,oneof=full-time part-time casual"`
	PositionTitle      string `json:"positionTitle" validate:"required,max=255"`
	NonHCAPOpportunity bool   `json:"nonHcapOpportunity"`
}

// RejectedData explains why the employer stopped the engagement.
type RejectedData struct {
	Reason string `json:"refusalReason" validate:"required,max=255"`
}

// ArchivedData closes out a hire.
type ArchivedData struct {
	Type    string `json:"type" validate:"required,oneof=employmentEnded duplicate"`
	Reason  string `json:"reason" validate:"required,max=255"`
	EndDate string `json:"endDate" validate:"required_if=Type employmentEnded,omitempty,datetime=2006-01-02"`
	Rehire  string `json:"rehire" validate:"omitempty,oneof=yes no"`
}

func (ProspectingData) StatusKind() Status  { return StatusProspecting }
func (InterviewingData) StatusKind() Status { return StatusInterviewing }
func (OfferMadeData) StatusKind() Status    { return StatusOfferMade }
func (HiredData) StatusKind() Status        { return StatusHired }
func (RejectedData) StatusKind() Status     { return StatusRejected }
func (ArchivedData) StatusKind() Status     { return StatusArchived }

// DecodeStatusData unmarshals raw into the payload type of status.  Unknown
// fields are rejected.  An empty payload decodes to the zero value, which
// field validation then accepts or refuses.
func DecodeStatusData(status Status, raw json.RawMessage) (StatusData, error) {
	var target StatusData
	switch status {
	case StatusProspecting:
		target = &ProspectingData{}
	case StatusInterviewing:
		target = &InterviewingData{}
	case StatusOfferMade:
		target = &OfferMadeData{}
	case StatusHired:
		target = &HiredData{}
	case StatusRejected:
		target = &RejectedData{}
	case StatusArchived:
		target = &ArchivedData{}
	default:
		return nil, fmt.Errorf("no payload defined for status %q", status)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// SiteOf returns the employer site a payload is bound to, if any.
func SiteOf(d StatusData) (int64, bool) {
	if h, ok := d.(*HiredData); ok && h.Site > 0 {
		return h.Site, true
	}
	return 0, false
}

// PeekSite reads the site of a hired payload without validating the rest of
// it.  It returns 0 for any other status or an unreadable payload.
func PeekSite(status Status, raw json.RawMessage) int64 {
	if status != StatusHired || len(bytes.TrimSpace(raw)) == 0 {
		return 0
	}
	var p struct {
		Site int64 `json:"site"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.Site < 0 {
		return 0
	}
	return p.Site
}
