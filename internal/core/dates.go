package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthAbbrev are the month labels used by the charts.
var MonthAbbrev = [12]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate accepts ISO dates, RFC 3339 timestamps and dd/mm/yyyy.
// Date-only values are placed at midnight in loc; timestamps carrying their
// own offset are converted to loc, so day-level logic sees the local day.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDate
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

// ISODate formats t as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthLabel renders "Ene 2024" style labels.
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", MonthAbbrev[t.Month()-1], t.Year())
}

// ShortDayLabel renders "d/m".
func ShortDayLabel(t time.Time) string {
	return fmt.Sprintf("%d/%d", t.Day(), int(t.Month()))
}

// FormatDay renders dd/mm/yyyy.
func FormatDay(t time.Time) string {
	return t.Format("02/01/2006")
}

// AddMonths moves to the first day of the month offset months away.
func AddMonths(t time.Time, offset int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(offset), 1, 0, 0, 0, 0, t.Location())
}
