package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
)

var (
	fraserHA = auth.Actor{ID: "ha-1", Role: auth.RoleHealthAuthority, Regions: []string{model.RegionFraser}}
	moh      = auth.Actor{ID: "moh-1", Role: auth.RoleMinistry}
)

func hiredRows(n int) []model.HiredRow {
	rows := make([]model.HiredRow, 0, n)
	for i := 1; i <= n; i++ {
		ha := model.RegionFraser
		if i%2 == 0 {
			ha = model.RegionInterior
		}
		rows = append(rows, model.HiredRow{
			StatusID:        int64(i),
			ParticipantID:   int64(1000 + i),
			FirstName:       "First",
			LastName:        "Last",
			Email:           "p@example.com",
			Hire:            model.HiredData{PositionTitle: "HCA", PositionType: "full-time", HiredDate: "2024-01-01", StartDate: "2024-02-01"},
			SiteID:          7,
			SiteName:        "Site",
			HealthAuthority: ha,
		})
	}
	return rows
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	recs, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return recs
}

func TestScope(t *testing.T) {
	svc := NewReportService(&memReportStore{}, zap.NewNop())

	if _, err := svc.Scope(employer, ""); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("employer: got %v", err)
	}
	if scope, err := svc.Scope(moh, ""); err != nil || scope != nil {
		t.Fatalf("ministry: scope %v err %v", scope, err)
	}
	if scope, err := svc.Scope(fraserHA, "fraser"); err != nil || len(scope) != 1 || scope[0] != model.RegionFraser {
		t.Fatalf("own region: scope %v err %v", scope, err)
	}
	if err := svc.CheckUserRegion(fraserHA, "Interior"); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("other region: got %v", err)
	}
	var ve *ValidationError
	if _, err := svc.Scope(moh, "atlantis"); !errors.As(err, &ve) {
		t.Fatalf("unknown region: got %v", err)
	}
	noRegions := auth.Actor{ID: "ha-2", Role: auth.RoleHealthAuthority}
	if scope, err := svc.Scope(noRegions, ""); err != nil || scope == nil || len(scope) != 0 {
		t.Fatalf("ha without regions: scope %v err %v", scope, err)
	}
}

func TestHiredCSVPagesInBatches(t *testing.T) {
	store := &memReportStore{hired: hiredRows(1201)}
	svc := NewReportService(store, zap.NewNop())

	var buf bytes.Buffer
	if err := svc.WriteHiredCSV(context.Background(), moh, "", &buf); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, buf.Bytes())
	if len(recs) != 1202 {
		t.Fatalf("got %d records, want header + 1201", len(recs))
	}
	if recs[0][0] != "Participant ID" || recs[0][len(recs[0])-1] != "ROS Start Date" {
		t.Fatalf("header = %v", recs[0])
	}
	if store.hiredCall != 3 {
		t.Fatalf("fetched %d batches, want 3", store.hiredCall)
	}
	seen := map[string]bool{}
	for _, r := range recs[1:] {
		if seen[r[0]] {
			t.Fatalf("participant %s written twice", r[0])
		}
		seen[r[0]] = true
	}
}

func TestHiredCSVRegionScoping(t *testing.T) {
	store := &memReportStore{hired: hiredRows(10)}
	svc := NewReportService(store, zap.NewNop())

	var buf bytes.Buffer
	err := svc.WriteHiredCSV(context.Background(), fraserHA, model.RegionInterior, &buf)
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if buf.Len() != 0 {
		t.Fatal("output written before the region check")
	}

	if err := svc.WriteHiredCSV(context.Background(), fraserHA, "fraser", &buf); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, buf.Bytes())
	if len(recs) != 6 {
		t.Fatalf("got %d records, want header + 5", len(recs))
	}
	for _, r := range recs[1:] {
		if r[8] != model.RegionFraser {
			t.Fatalf("row outside region: %v", r)
		}
	}
}

func TestROSCSVIncludesEndDate(t *testing.T) {
	store := &memReportStore{ros: []model.ROSRow{
		{ParticipantID: 5, FirstName: "A", LastName: "B", Status: model.ROSAssignedSameSite, SiteID: 7, SiteName: "Site", HealthAuthority: model.RegionFraser,
			Data: model.ROSData{Date: "2020-02-29", EmploymentType: "full-time", PositionType: "permanent"}},
		{ParticipantID: 6, HealthAuthority: model.RegionNorthern, Data: model.ROSData{Date: "2021-05-01"}},
	}}
	svc := NewReportService(store, zap.NewNop())

	var buf bytes.Buffer
	if err := svc.WriteROSCSV(context.Background(), fraserHA, "", &buf); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, buf.Bytes())
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if got := strings.Join(recs[1][8:10], " "); got != "2020-02-29 2021-03-01" {
		t.Fatalf("dates = %q", got)
	}
}

func TestMilestonesScope(t *testing.T) {
	store := &memReportStore{counts: model.MilestoneReport{Total: 3, Hired: 1}}
	svc := NewReportService(store, zap.NewNop())

	rep, err := svc.Milestones(context.Background(), fraserHA)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 3 || rep.HiredPerRegion == nil {
		t.Fatalf("got %+v", rep)
	}
	if len(store.lastScope) != 1 || store.lastScope[0] != model.RegionFraser {
		t.Fatalf("scope = %v", store.lastScope)
	}

	if _, err := svc.Milestones(context.Background(), employer); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("employer: got %v", err)
	}
}

func TestPSICSVHeader(t *testing.T) {
	store := &memReportStore{psi: []model.PSIRow{{ParticipantID: 9, InstituteName: "College", CohortName: "Fall", HealthAuthority: model.RegionFraser}}}
	svc := NewReportService(store, zap.NewNop())

	var buf bytes.Buffer
	if err := svc.WritePSIParticipantsCSV(context.Background(), moh, &buf); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, buf.Bytes())
	if len(recs) != 2 || recs[0][4] != "PSI" || recs[1][4] != "College" {
		t.Fatalf("got %v", recs)
	}
}
