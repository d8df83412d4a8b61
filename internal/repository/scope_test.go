package repository

import "testing"

func TestRegionFilter(t *testing.T) {
	tests := []struct {
		name    string
		regions []string
		list    bool
		clause  string
		args    int
	}{
		{"all regions", nil, false, "", 0},
		{"no regions", []string{}, false, " AND 1 = 0", 0},
		{"column", []string{"Fraser", "Interior"}, false, " AND es.health_authority IN (?, ?)", 2},
		{"list", []string{"Fraser", "Northern"}, true, " AND (FIND_IN_SET(?, es.health_authority) > 0 OR FIND_IN_SET(?, es.health_authority) > 0)", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := regionFilter("es.health_authority", tt.regions, tt.list)
			if clause != tt.clause {
				t.Fatalf("clause = %q, want %q", clause, tt.clause)
			}
			if len(args) != tt.args {
				t.Fatalf("got %d args, want %d", len(args), tt.args)
			}
		})
	}
}

func TestJoinRegions(t *testing.T) {
	if got := joinRegions([]string{" Fraser", "", "Vancouver Island "}); got != "Fraser,Vancouver Island" {
		t.Fatalf("got %q", got)
	}
	if got := placeholders(3); got != "?, ?, ?" {
		t.Fatalf("got %q", got)
	}
}

func TestCohortHasRoom(t *testing.T) {
	tests := []struct {
		size, assigned int
		want           bool
	}{
		{0, 100, true},
		{3, 2, true},
		{3, 3, false},
		{1, 0, true},
	}
	for _, tt := range tests {
		if got := cohortHasRoom(tt.size, tt.assigned); got != tt.want {
			t.Errorf("cohortHasRoom(%d, %d) = %v, want %v", tt.size, tt.assigned, got, tt.want)
		}
	}
}
