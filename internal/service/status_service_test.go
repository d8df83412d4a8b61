package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/queue"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/transition"
)

const hiredPayload = `{"site":10,"hiredDate":"2024-01-10","startDate":"2024-02-01","positionType":"full-time","positionTitle":"Health Care Assistant"}`

var employer = auth.Actor{ID: "emp-1", Role: auth.RoleEmployer, Sites: []int64{10}}

func newStatusFixture(t *testing.T) (*StatusService, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	store.addParticipants(1, 2, 3)
	store.addSites(10, 20)
	pub := &recordingPublisher{}
	return NewStatusService(store, pub, zap.NewNop()), store, pub
}

func move(t *testing.T, svc *StatusService, actor auth.Actor, id int64, status model.Status, data string) *model.StatusRecord {
	t.Helper()
	req := TransitionRequest{ParticipantID: id, Status: status}
	if data != "" {
		req.Data = json.RawMessage(data)
	}
	rec, err := svc.Transition(context.Background(), actor, req)
	if err != nil {
		t.Fatalf("%s: %v", status, err)
	}
	return rec
}

func hire(t *testing.T, svc *StatusService, id int64) *model.StatusRecord {
	t.Helper()
	move(t, svc, employer, id, model.StatusProspecting, "")
	move(t, svc, employer, id, model.StatusInterviewing, `{"contacted_at":"2024-01-02"}`)
	move(t, svc, employer, id, model.StatusOfferMade, "")
	return move(t, svc, employer, id, model.StatusHired, hiredPayload)
}

func TestTransitionWalksPipelineToHired(t *testing.T) {
	svc, store, pub := newStatusFixture(t)
	rec := hire(t, svc, 1)
	store.assertOneCurrent(t)

	if rec.Status != model.StatusHired || !rec.Current {
		t.Fatalf("got %+v", rec)
	}
	if rec.SiteID == nil || *rec.SiteID != 10 {
		t.Fatalf("site not recorded: %v", rec.SiteID)
	}
	if rec.EmployerID == nil || *rec.EmployerID != "emp-1" {
		t.Fatalf("employer not recorded: %v", rec.EmployerID)
	}

	hist, err := svc.History(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 4 {
		t.Fatalf("history has %d rows, want 4", len(hist))
	}
	for i, r := range hist[:3] {
		if r.Current {
			t.Fatalf("row %d (%s) still current", i, r.Status)
		}
	}

	if len(pub.events) != 4 {
		t.Fatalf("published %d events, want 4", len(pub.events))
	}
	last := pub.events[3]
	if last.Kind != queue.KindParticipantStatus || last.PreviousStatus != string(model.StatusOfferMade) || last.PreviousID == nil {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestTransitionAfterHiredIsAlreadyHired(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	hire(t, svc, 1)

	for i := 0; i < 2; i++ {
		_, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: model.StatusProspecting})
		if !IsRejection(err, transition.AlreadyHired) {
			t.Fatalf("attempt %d: got %v, want ALREADY_HIRED", i+1, err)
		}
	}
	cur, _ := svc.Current(context.Background(), 1)
	if cur == nil || cur.Status != model.StatusHired {
		t.Fatalf("current status changed to %+v", cur)
	}
	if n := len(store.status); n != 4 {
		t.Fatalf("rejected transition wrote rows: %d", n)
	}
}

func TestArchiveRequiresHired(t *testing.T) {
	svc, _, _ := newStatusFixture(t)
	_, err := svc.Archive(context.Background(), employer, ArchiveRequest{
		ParticipantID: 1,
		Data:          json.RawMessage(`{"type":"duplicate","reason":"Duplicate record"}`),
	})
	if !IsRejection(err, transition.InvalidArchive) {
		t.Fatalf("got %v, want INVALID_ARCHIVE", err)
	}
}

func TestStateRejectionWinsOverPayload(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	hire(t, svc, 1)

	for _, status := range []model.Status{model.StatusRejected, model.StatusHired, model.StatusInterviewing} {
		for i := 0; i < 2; i++ {
			_, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: status})
			if !IsRejection(err, transition.AlreadyHired) {
				t.Fatalf("%s attempt %d: got %v, want ALREADY_HIRED", status, i+1, err)
			}
		}
	}

	_, err := svc.Archive(context.Background(), employer, ArchiveRequest{ParticipantID: 2, Data: json.RawMessage(`{}`)})
	if !IsRejection(err, transition.InvalidArchive) {
		t.Fatalf("archive from open: got %v, want INVALID_ARCHIVE", err)
	}
	if n := len(store.status); n != 4 {
		t.Fatalf("refused transitions wrote rows: %d", n)
	}
}

func TestHireToUnknownSiteIsNotFound(t *testing.T) {
	svc, _, _ := newStatusFixture(t)
	ministry := auth.Actor{ID: "moh-1", Role: auth.RoleMinistry}
	move(t, svc, ministry, 1, model.StatusProspecting, "")
	move(t, svc, ministry, 1, model.StatusInterviewing, "")
	move(t, svc, ministry, 1, model.StatusOfferMade, "")

	payload := `{"site":99,"hiredDate":"2024-01-10","startDate":"2024-02-01","positionType":"casual","positionTitle":"HCA"}`
	_, err := svc.Transition(context.Background(), ministry, TransitionRequest{ParticipantID: 1, Status: model.StatusHired, Data: json.RawMessage(payload)})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestArchiveHiredParticipant(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	hire(t, svc, 1)
	rec, err := svc.Archive(context.Background(), employer, ArchiveRequest{
		ParticipantID: 1,
		Data:          json.RawMessage(`{"type":"employmentEnded","reason":"Terminated","endDate":"2024-06-30","rehire":"no"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusArchived {
		t.Fatalf("status = %s", rec.Status)
	}
	store.assertOneCurrent(t)
}

func TestArchiveEmploymentEndedNeedsEndDate(t *testing.T) {
	svc, _, _ := newStatusFixture(t)
	hire(t, svc, 1)
	_, err := svc.Archive(context.Background(), employer, ArchiveRequest{
		ParticipantID: 1,
		Data:          json.RawMessage(`{"type":"employmentEnded","reason":"Terminated"}`),
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestReengageRejectedParticipant(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	move(t, svc, employer, 1, model.StatusProspecting, "")
	rejected := move(t, svc, employer, 1, model.StatusRejected, `{"refusalReason":"Not responsive"}`)
	again := move(t, svc, employer, 1, model.StatusProspecting, "")
	store.assertOneCurrent(t)

	if !again.Current || again.Status != model.StatusProspecting {
		t.Fatalf("got %+v", again)
	}
	hist, _ := svc.History(context.Background(), 1)
	for _, r := range hist {
		if r.ID == rejected.ID && r.Current {
			t.Fatal("rejected row is still current")
		}
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	svc, _, _ := newStatusFixture(t)
	_, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: model.StatusOfferMade})
	if !IsRejection(err, transition.InvalidStatusTransition) {
		t.Fatalf("got %v", err)
	}
	_, err = svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: "open"})
	if !IsRejection(err, transition.InvalidStatus) {
		t.Fatalf("got %v", err)
	}
}

func TestTransitionStaleCurrentStatusIDConflicts(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	first := move(t, svc, employer, 1, model.StatusProspecting, "")
	move(t, svc, employer, 1, model.StatusInterviewing, "")

	stale := first.ID
	_, err := svc.Transition(context.Background(), employer, TransitionRequest{
		ParticipantID:   1,
		Status:          model.StatusRejected,
		Data:            json.RawMessage(`{"refusalReason":"Declined"}`),
		CurrentStatusID: &stale,
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if n := len(store.status); n != 2 {
		t.Fatalf("conflicting transition wrote rows: %d", n)
	}
}

func TestTransitionSiteOutsideUserSitesIsForbidden(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	move(t, svc, employer, 1, model.StatusProspecting, "")
	move(t, svc, employer, 1, model.StatusInterviewing, "")
	move(t, svc, employer, 1, model.StatusOfferMade, "")

	payload := `{"site":20,"hiredDate":"2024-01-10","startDate":"2024-02-01","positionType":"casual","positionTitle":"HCA"}`
	_, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: model.StatusHired, Data: json.RawMessage(payload)})
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}

	ministry := auth.Actor{ID: "moh-1", Role: auth.RoleMinistry}
	rec, err := svc.Transition(context.Background(), ministry, TransitionRequest{ParticipantID: 1, Status: model.StatusHired, Data: json.RawMessage(payload)})
	if err != nil {
		t.Fatalf("ministry hire: %v", err)
	}
	if rec.EmployerID != nil {
		t.Fatalf("ministry action recorded employer %q", *rec.EmployerID)
	}
	store.assertOneCurrent(t)
}

func TestTransitionValidatesPayload(t *testing.T) {
	svc, _, _ := newStatusFixture(t)
	move(t, svc, employer, 1, model.StatusProspecting, "")

	cases := map[string]string{
		"missing reason": `{}`,
		"unknown field":  `{"refusalReason":"x","extra":1}`,
		"wrong type":     `{"refusalReason":12}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: model.StatusRejected, Data: json.RawMessage(body)})
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestTransitionUnknownParticipant(t *testing.T) {
	svc, _, _ := newStatusFixture(t)
	_, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 42, Status: model.StatusProspecting})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTransitionSurvivesPublishFailure(t *testing.T) {
	svc, _, pub := newStatusFixture(t)
	pub.err = errors.New("broker down")
	if _, err := svc.Transition(context.Background(), employer, TransitionRequest{ParticipantID: 1, Status: model.StatusProspecting}); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestBulkEngageReportsEveryID(t *testing.T) {
	svc, store, _ := newStatusFixture(t)
	hire(t, svc, 2)

	ids := []int64{1, 2, 3, 99}
	got := svc.BulkEngage(context.Background(), employer, ids)
	if len(got) != len(ids) {
		t.Fatalf("got %d results for %d ids", len(got), len(ids))
	}
	want := []BulkResult{
		{ParticipantID: 1, Status: "prospecting", Success: true},
		{ParticipantID: 2, Status: "ALREADY_HIRED", Success: false},
		{ParticipantID: 3, Status: "prospecting", Success: true},
		{ParticipantID: 99, Status: "NOT_FOUND", Success: false},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	store.assertOneCurrent(t)
}
