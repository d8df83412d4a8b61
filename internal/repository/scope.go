package repository

import "strings"

// regionFilter returns an AND clause restricting column to regions.  nil
// means no restriction and an empty slice matches nothing.  When list is
// true column holds a comma-separated region list (participants'
// preferred_location) and FIND_IN_SET is used.
func regionFilter(column string, regions []string, list bool) (string, []any) {
	if regions == nil {
		return "", nil
	}
	if len(regions) == 0 {
		return " AND 1 = 0", nil
	}
	args := make([]any, 0, len(regions))
	for _, r := range regions {
		args = append(args, r)
	}
	if list {
		parts := make([]string, len(regions))
		for i := range regions {
			parts[i] = "FIND_IN_SET(?, " + column + ") > 0"
		}
		return " AND (" + strings.Join(parts, " OR ") + ")", args
	}
	return " AND " + column + " IN (" + placeholders(len(regions)) + ")", args
}

// placeholders returns "?, ?, ?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// joinRegions stores a region list in the form FIND_IN_SET expects.
func joinRegions(regions []string) string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return strings.Join(out, ",")
}
