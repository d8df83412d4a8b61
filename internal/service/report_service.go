package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/utils"
)

// hiredBatchSize bounds how many hired rows are held in memory while the
// CSV is streamed.
const hiredBatchSize = 500

var hiredHeader = []string{
	"Participant ID", "First Name", "Last Name", "Email Address", "Phone Number", "Postal Code",
	"Site ID", "Site Name", "Health Authority", "Position Title", "Position Type",
	"Hired Date", "Start Date", "Non-HCAP Opportunity", "ROS Start Date",
}

var rosHeader = []string{
	"Participant ID", "First Name", "Last Name", "Email Address",
	"Site ID", "Site Name", "Health Authority", "ROS Status",
	"ROS Start Date", "ROS End Date", "Employment Type", "Position Type",
}

var psiHeader = []string{
	"Participant ID", "First Name", "Last Name", "Email Address",
	"PSI", "Cohort", "Cohort Start Date", "Cohort End Date",
	"Health Authority", "Current Status",
}

// ReportService builds the read-only milestone and CSV reports.  Every
// report resolves the caller's region scope before running a query.
type ReportService struct {
	store ReportStore
	log   *zap.Logger
}

func NewReportService(store ReportStore, log *zap.Logger) *ReportService {
	return &ReportService{store: store, log: log}
}

// Scope returns the regions a report for region may cover.  An empty
// region means every region the actor can see; nil means no restriction.
func (s *ReportService) Scope(actor auth.Actor, region string) ([]string, error) {
	if !actor.Can(auth.CanViewReports) {
		return nil, fmt.Errorf("role %q cannot view reports: %w", actor.Role, repository.ErrForbidden)
	}
	if region == "" {
		return actor.RegionScope(), nil
	}
	canonical, ok := model.NormalizeRegion(region)
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown region %q", region), Fields: []FieldError{{Field: "region", Rule: "oneof"}}}
	}
	if !actor.CanViewRegion(canonical) {
		return nil, fmt.Errorf("region %q: %w", canonical, repository.ErrForbidden)
	}
	return []string{canonical}, nil
}

// CheckUserRegion returns repository.ErrForbidden unless actor may view
// reports for region.
func (s *ReportService) CheckUserRegion(actor auth.Actor, region string) error {
	_, err := s.Scope(actor, region)
	return err
}

// Milestones summarises the pipeline over the actor's regions.
func (s *ReportService) Milestones(ctx context.Context, actor auth.Actor) (*model.MilestoneReport, error) {
	scope, err := s.Scope(actor, "")
	if err != nil {
		return nil, err
	}
	if scope != nil && len(scope) == 0 {
		return &model.MilestoneReport{HiredPerRegion: map[string]int{}}, nil
	}
	rep, err := s.store.MilestoneCounts(ctx, scope)
	if err != nil {
		return nil, err
	}
	if rep.HiredPerRegion == nil {
		rep.HiredPerRegion = map[string]int{}
	}
	return rep, nil
}

// WriteHiredCSV streams every currently hired participant in scope to w,
// fetching hiredBatchSize rows at a time.
func (s *ReportService) WriteHiredCSV(ctx context.Context, actor auth.Actor, region string, w io.Writer) error {
	scope, err := s.Scope(actor, region)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(hiredHeader); err != nil {
		return err
	}
	if scope != nil && len(scope) == 0 {
		cw.Flush()
		return cw.Error()
	}

	var after int64
	total := 0
	for {
		rows, err := s.store.HiredRows(ctx, scope, after, hiredBatchSize)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write(hiredRecord(r)); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		total += len(rows)
		if len(rows) < hiredBatchSize {
			break
		}
		after = rows[len(rows)-1].StatusID
	}
	s.log.Info("hired report written", zap.String("actor_id", actor.ID), zap.Strings("regions", scope), zap.Int("rows", total))
	return nil
}

// WriteROSCSV writes one row per current return-of-service record in scope.
func (s *ReportService) WriteROSCSV(ctx context.Context, actor auth.Actor, region string, w io.Writer) error {
	scope, err := s.Scope(actor, region)
	if err != nil {
		return err
	}
	var rows []model.ROSRow
	if scope == nil || len(scope) > 0 {
		if rows, err = s.store.ROSRows(ctx, scope); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(rosHeader); err != nil {
		return err
	}
	for _, r := range rows {
		end, err := utils.AddYearToDate(r.Data.Date)
		if err != nil {
			s.log.Warn("return of service row has invalid start date",
				zap.Int64("participant_id", r.ParticipantID), zap.String("date", r.Data.Date))
			end = ""
		}
		rec := []string{
			strconv.FormatInt(r.ParticipantID, 10), r.FirstName, r.LastName, r.Email,
			strconv.FormatInt(r.SiteID, 10), r.SiteName, r.HealthAuthority, string(r.Status),
			r.Data.Date, end, r.Data.EmploymentType, r.Data.PositionType,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePSIParticipantsCSV writes every cohort-assigned participant in the
// actor's regions.
func (s *ReportService) WritePSIParticipantsCSV(ctx context.Context, actor auth.Actor, w io.Writer) error {
	scope, err := s.Scope(actor, "")
	if err != nil {
		return err
	}
	var rows []model.PSIRow
	if scope == nil || len(scope) > 0 {
		if rows, err = s.store.PSIParticipantRows(ctx, scope); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(psiHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.ParticipantID, 10), r.FirstName, r.LastName, r.Email,
			r.InstituteName, r.CohortName, r.CohortStartDate, r.CohortEndDate,
			r.HealthAuthority, r.CurrentStatus,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func hiredRecord(r model.HiredRow) []string {
	nonHCAP := "No"
	if r.Hire.NonHCAPOpportunity {
		nonHCAP = "Yes"
	}
	return []string{
		strconv.FormatInt(r.ParticipantID, 10), r.FirstName, r.LastName, r.Email, r.PhoneNumber, r.PostalCode,
		strconv.FormatInt(r.SiteID, 10), r.SiteName, r.HealthAuthority, r.Hire.PositionTitle, r.Hire.PositionType,
		r.Hire.HiredDate, r.Hire.StartDate, nonHCAP, r.ROSStartDate,
	}
}
