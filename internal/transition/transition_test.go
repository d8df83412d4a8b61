package transition

import (
	"testing"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
)

func ptr(s model.Status) *model.Status { return &s }

var allStatuses = []model.Status{
	model.StatusOpen,
	model.StatusProspecting,
	model.StatusInterviewing,
	model.StatusOfferMade,
	model.StatusHired,
	model.StatusRejected,
	model.StatusArchived,
}

// expected spells out the full table for an employer.  Anything not listed
// as Allowed is checked against the rejection the rules produce.
func expected(from *model.Status, to model.Status) Rejection {
	if to == model.StatusOpen {
		return InvalidStatus
	}
	f := model.StatusOpen
	if from != nil {
		f = *from
	}
	switch {
	case f == model.StatusHired && to == model.StatusArchived:
		return Allowed
	case f == model.StatusHired:
		return AlreadyHired
	case to == model.StatusArchived:
		return InvalidArchive
	}
	legal := map[[2]model.Status]bool{
		{model.StatusOpen, model.StatusProspecting}:         true,
		{model.StatusProspecting, model.StatusInterviewing}: true,
		{model.StatusInterviewing, model.StatusOfferMade}:   true,
		{model.StatusOfferMade, model.StatusHired}:          true,
		{model.StatusProspecting, model.StatusRejected}:     true,
		{model.StatusInterviewing, model.StatusRejected}:    true,
		{model.StatusOfferMade, model.StatusRejected}:       true,
		{model.StatusRejected, model.StatusProspecting}:     true,
	}
	if legal[[2]model.Status{f, to}] {
		return Allowed
	}
	return InvalidStatusTransition
}

func TestValidateExhaustiveForEmployer(t *testing.T) {
	froms := []*model.Status{nil}
	for _, s := range allStatuses {
		froms = append(froms, ptr(s))
	}
	for _, from := range froms {
		for _, to := range allStatuses {
			want := expected(from, to)
			got := Validate(from, to, auth.RoleEmployer)
			if got != want {
				name := "nil"
				if from != nil {
					name = string(*from)
				}
				t.Errorf("Validate(%s -> %s) = %q, want %q", name, to, got, want)
			}
		}
	}
}

func TestValidateNamedCases(t *testing.T) {
	cases := []struct {
		name string
		from *model.Status
		to   model.Status
		role auth.Role
		want Rejection
	}{
		{"engage new participant", nil, model.StatusProspecting, auth.RoleEmployer, Allowed},
		{"archive from open", ptr(model.StatusOpen), model.StatusArchived, auth.RoleEmployer, InvalidArchive},
		{"archive never engaged", nil, model.StatusArchived, auth.RoleMinistry, InvalidArchive},
		{"archive hired", ptr(model.StatusHired), model.StatusArchived, auth.RoleHealthAuthority, Allowed},
		{"re-engage rejected", ptr(model.StatusRejected), model.StatusProspecting, auth.RoleEmployer, Allowed},
		{"hired then interview", ptr(model.StatusHired), model.StatusInterviewing, auth.RoleMinistry, AlreadyHired},
		{"hired then hired", ptr(model.StatusHired), model.StatusHired, auth.RoleEmployer, AlreadyHired},
		{"unknown target", ptr(model.StatusProspecting), model.Status("pending"), auth.RoleEmployer, InvalidStatus},
		{"skip interview", ptr(model.StatusProspecting), model.StatusOfferMade, auth.RoleEmployer, InvalidStatusTransition},
		{"participant cannot engage", nil, model.StatusProspecting, auth.RoleParticipant, InvalidStatusTransition},
		{"participant cannot archive", ptr(model.StatusHired), model.StatusArchived, auth.RoleParticipant, InvalidStatusTransition},
		{"archived is terminal", ptr(model.StatusArchived), model.StatusProspecting, auth.RoleMinistry, InvalidStatusTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(tc.from, tc.to, tc.role); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAlreadyHiredIsStable(t *testing.T) {
	hired := ptr(model.StatusHired)
	for i := 0; i < 3; i++ {
		if got := Validate(hired, model.StatusProspecting, auth.RoleEmployer); got != AlreadyHired {
			t.Fatalf("attempt %d: got %q", i, got)
		}
	}
}

func TestCheckSite(t *testing.T) {
	if !CheckSite(auth.RoleEmployer, 0, nil) {
		t.Error("no site means no site check")
	}
	if !CheckSite(auth.RoleEmployer, 4, []int64{2, 4}) {
		t.Error("employer owns site 4")
	}
	if CheckSite(auth.RoleHealthAuthority, 5, []int64{2, 4}) {
		t.Error("health authority does not own site 5")
	}
	if !CheckSite(auth.RoleMinistry, 5, nil) {
		t.Error("ministry bypasses site membership")
	}
}
