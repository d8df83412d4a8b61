package utils

import "testing"

func TestAddYearToDate(t *testing.T) {
	cases := map[string]string{
		"2020/02/29": "2021/03/01",
		"2020/02/28": "2021/02/28",
		"2019/12/31": "2020/12/31",
		"2023-02-28": "2024-02-28",
		"2024-02-29": "2025-03-01",
	}
	for in, want := range cases {
		got, err := AddYearToDate(in)
		if err != nil {
			t.Fatalf("AddYearToDate(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("AddYearToDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAddYearToDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2020-13-01", "yesterday", "2021/02/29"} {
		if _, err := AddYearToDate(in); err == nil {
			t.Errorf("AddYearToDate(%q) should fail", in)
		}
	}
}
