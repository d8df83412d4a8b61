package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
)

var rosData = model.ROSData{Date: "2020-02-29", EmploymentType: "full-time", PositionType: "permanent"}

func newROSFixture(t *testing.T) (*StatusService, *ROSService, *memStore) {
	t.Helper()
	store := newMemStore()
	store.addParticipants(1, 2)
	store.addSites(10, 20, 30)
	pub := &recordingPublisher{}
	return NewStatusService(store, pub, zap.NewNop()), NewROSService(store, pub, zap.NewNop()), store
}

func TestROSCreateRequiresHired(t *testing.T) {
	statuses, ros, store := newROSFixture(t)
	move(t, statuses, employer, 1, model.StatusProspecting, "")

	_, err := ros.Create(context.Background(), employer, 1, ROSRequest{SiteID: 10, Data: rosData})
	if !errors.Is(err, ErrNotHired) {
		t.Fatalf("got %v, want ErrNotHired", err)
	}
	if len(store.ros) != 0 {
		t.Fatal("record written for participant who is not hired")
	}
}

func TestROSCreateDefaultsToHiredSite(t *testing.T) {
	statuses, ros, store := newROSFixture(t)
	hire(t, statuses, 1)

	rec, err := ros.Create(context.Background(), employer, 1, ROSRequest{Data: rosData})
	if err != nil {
		t.Fatal(err)
	}
	if rec.SiteID != 10 || rec.Status != model.ROSAssignedSameSite || !rec.Current {
		t.Fatalf("got %+v", rec)
	}
	if rec.CreatedBy != "emp-1" {
		t.Fatalf("created by %q", rec.CreatedBy)
	}

	_, err = ros.Create(context.Background(), employer, 1, ROSRequest{Data: rosData})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("second create: got %v, want ErrConflict", err)
	}
	store.assertOneCurrent(t)
}

func TestROSCreateAfterArchiveIsRefused(t *testing.T) {
	statuses, ros, _ := newROSFixture(t)
	hire(t, statuses, 1)
	if _, err := statuses.Archive(context.Background(), employer, ArchiveRequest{
		ParticipantID: 1,
		Data:          []byte(`{"type":"duplicate","reason":"dup"}`),
	}); err != nil {
		t.Fatal(err)
	}
	_, err := ros.Create(context.Background(), employer, 1, ROSRequest{Data: rosData})
	if !errors.Is(err, ErrNotHired) {
		t.Fatalf("got %v, want ErrNotHired", err)
	}
}

func TestROSChangeSiteLinksPrevious(t *testing.T) {
	statuses, ros, store := newROSFixture(t)
	hire(t, statuses, 1)
	first, err := ros.Create(context.Background(), employer, 1, ROSRequest{SiteID: 10, Data: rosData})
	if err != nil {
		t.Fatal(err)
	}

	moh := auth.Actor{ID: "moh-1", Role: auth.RoleMinistry}
	moved, err := ros.ChangeSite(context.Background(), moh, 1, ROSRequest{SiteID: 20, Data: rosData})
	if err != nil {
		t.Fatal(err)
	}
	if moved.Status != model.ROSAssignedNewSite || moved.SiteID != 20 {
		t.Fatalf("got %+v", moved)
	}
	if moved.PreviousID == nil || *moved.PreviousID != first.ID {
		t.Fatalf("previous id = %v, want %d", moved.PreviousID, first.ID)
	}
	store.assertOneCurrent(t)

	hist, _ := ros.History(context.Background(), 1)
	if len(hist) != 2 || hist[0].Current {
		t.Fatalf("history = %+v", hist)
	}
}

func TestROSChangeSiteChecks(t *testing.T) {
	statuses, ros, _ := newROSFixture(t)
	hire(t, statuses, 1)

	_, err := ros.ChangeSite(context.Background(), employer, 1, ROSRequest{SiteID: 20, Data: rosData})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("no record: got %v", err)
	}
	if _, err := ros.Create(context.Background(), employer, 1, ROSRequest{SiteID: 10, Data: rosData}); err != nil {
		t.Fatal(err)
	}
	_, err = ros.ChangeSite(context.Background(), employer, 1, ROSRequest{SiteID: 20, Data: rosData})
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("site outside user sites: got %v", err)
	}
	var ve *ValidationError
	_, err = ros.ChangeSite(context.Background(), employer, 1, ROSRequest{SiteID: 10, Data: rosData})
	if !errors.As(err, &ve) {
		t.Fatalf("same site: got %v", err)
	}
}

func TestROSUpdateIsMinistryOnly(t *testing.T) {
	statuses, ros, store := newROSFixture(t)
	hire(t, statuses, 1)
	first, err := ros.Create(context.Background(), employer, 1, ROSRequest{SiteID: 10, Data: rosData})
	if err != nil {
		t.Fatal(err)
	}

	fix := ROSUpdate{Data: model.ROSData{Date: "2020-02-29", EmploymentType: "part-time", PositionType: "temporary"}}
	if _, err := ros.Update(context.Background(), employer, 1, fix); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("employer update: got %v", err)
	}

	moh := auth.Actor{ID: "moh-1", Role: auth.RoleMinistry}
	rec, err := ros.Update(context.Background(), moh, 1, fix)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SiteID != first.SiteID || rec.Status != first.Status || rec.Data.EmploymentType != "part-time" {
		t.Fatalf("got %+v", rec)
	}
	store.assertOneCurrent(t)
}

func TestROSGetDerivesEndDate(t *testing.T) {
	statuses, ros, _ := newROSFixture(t)
	hire(t, statuses, 1)
	if _, err := ros.Create(context.Background(), employer, 1, ROSRequest{Data: rosData}); err != nil {
		t.Fatal(err)
	}
	view, err := ros.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if view.EndDate != "2021-03-01" {
		t.Fatalf("end date = %s, want 2021-03-01", view.EndDate)
	}

	if _, err := ros.Get(context.Background(), 2); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestROSInvalidData(t *testing.T) {
	statuses, ros, _ := newROSFixture(t)
	hire(t, statuses, 1)
	bad := model.ROSData{Date: "02/29/2020", EmploymentType: "full-time", PositionType: "permanent"}
	var ve *ValidationError
	if _, err := ros.Create(context.Background(), employer, 1, ROSRequest{Data: bad}); !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}
