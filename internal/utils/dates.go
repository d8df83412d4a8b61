package utils

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts accepted by AddYearToDate.  The separator of the input is
// kept in the output.
const (
	DateLayout      = "2006-01-02"
	SlashDateLayout = "2006/01/02"
)

// AddYear returns t one calendar year later.  Feb 29 rolls over to Mar 1
// when the target year is not a leap year.
func AddYear(t time.Time) time.Time {
	return t.AddDate(1, 0, 0)
}

// AddYearToDate adds one year to a YYYY-MM-DD or YYYY/MM/DD date string.
// "2020/02/29" becomes "2021/03/01"; "2020/02/28" becomes "2021/02/28".
func AddYearToDate(date string) (string, error) {
	layout := DateLayout
	if strings.Contains(date, "/") {
		layout = SlashDateLayout
	}
	t, err := time.Parse(layout, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return AddYear(t).Format(layout), nil
}
