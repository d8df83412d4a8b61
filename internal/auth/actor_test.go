package auth

import (
	"reflect"
	"testing"
)

func TestNewActorPicksHighestRole(t *testing.T) {
	a := NewActor("u1", "jdoe", "j@example.com", []string{"employer", "offline_access", "health_authority"}, nil)
	if a.Role != RoleHealthAuthority {
		t.Fatalf("role = %q, want %q", a.Role, RoleHealthAuthority)
	}
}

func TestNewActorCollectsRegions(t *testing.T) {
	a := NewActor("u1", "", "", []string{"health_authority", "region_fraser", "region_vancouver_coastal", "region_fraser", "region_atlantis"}, nil)
	want := []string{"Fraser", "Vancouver Coastal"}
	if !reflect.DeepEqual(a.Regions, want) {
		t.Fatalf("regions = %v, want %v", a.Regions, want)
	}
}

func TestActorCapabilities(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleEmployer, CanTransition, true},
		{RoleEmployer, CanViewReports, false},
		{RoleHealthAuthority, CanViewReports, true},
		{RoleHealthAuthority, CanViewAllRegions, false},
		{RoleHealthAuthority, CanCorrectROS, false},
		{RoleMinistry, CanCorrectROS, true},
		{RoleMinistry, CanViewAllRegions, true},
		{RoleSuperuser, CanManageUsers, true},
		{RoleParticipant, CanTransition, false},
		{Role("bogus"), CanTransition, false},
	}
	for _, tc := range cases {
		a := Actor{Role: tc.role}
		if got := a.Can(tc.cap); got != tc.want {
			t.Errorf("%s.Can(%d) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestCanViewRegion(t *testing.T) {
	ha := Actor{Role: RoleHealthAuthority, Regions: []string{"Fraser"}}
	if !ha.CanViewRegion("fraser") {
		t.Error("health authority should see its own region")
	}
	if ha.CanViewRegion("Interior") {
		t.Error("health authority should not see another region")
	}
	if (Actor{Role: RoleEmployer, Regions: []string{"Fraser"}}).CanViewRegion("Fraser") {
		t.Error("employers cannot view reports at all")
	}
	if !(Actor{Role: RoleMinistry}).CanViewRegion("Northern") {
		t.Error("ministry sees every region")
	}
}

func TestRegionScope(t *testing.T) {
	if scope := (Actor{Role: RoleMinistry}).RegionScope(); scope != nil {
		t.Errorf("ministry scope = %v, want nil", scope)
	}
	if scope := (Actor{Role: RoleHealthAuthority}).RegionScope(); scope == nil || len(scope) != 0 {
		t.Errorf("health authority without regions should get an empty, non-nil scope, got %#v", scope)
	}
}

func TestHasSite(t *testing.T) {
	emp := Actor{Role: RoleEmployer, Sites: []int64{3, 7}}
	if !emp.HasSite(7) || emp.HasSite(8) {
		t.Errorf("employer site membership wrong: %v", emp.Sites)
	}
	if !(Actor{Role: RoleMinistry}).HasSite(99) {
		t.Error("ministry has access to every site")
	}
}
