package order

import (
	"fmt"
	"regexp"
	"time"
)

const numberPrefix = "ORD-"

var numberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{4,}$`)

// FormatOrderNumber renders ORD-YYYYMMDD-NNNN. The sequence is zero padded to
// four digits and simply grows wider past 9999.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s-%04d", numberPrefix, day.Format("20060102"), seq)
}

func IsOrderNumber(ref string) bool {
	return numberPattern.MatchString(ref)
}

// orderDay truncates t to its calendar date in loc.
func orderDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
