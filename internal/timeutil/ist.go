package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30)
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006"
)

// Now returns the current time in IST
func Now() time.Time {
	return time.Now().In(IST)
}

// StartOfDay returns midnight in IST of the day t falls on in IST
func StartOfDay(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
}

// DateOf keeps the calendar fields of t as they read in t's own location and
// pins them to IST midnight. Used for DATE columns that come back as UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
}

// ParseDate accepts an ISO-8601 calendar date or an RFC 3339 date-time and
// returns the IST calendar date it denotes.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation(DateLayout, value, IST); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339Nano, DateTimeLayout} {
		if t, err := time.ParseInLocation(layout, value, IST); err == nil {
			return StartOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", value)
}

// FormatDate formats t as an IST calendar date
func FormatDate(t time.Time) string {
	return t.In(IST).Format(DateLayout)
}
