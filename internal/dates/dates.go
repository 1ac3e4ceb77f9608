// Package dates parses and formats the calendar dates stored on clients and
// transactions. Stored dates are day-first (DD-MM-YYYY); date inputs send
// ISO form (YYYY-MM-DD). Every parsed value is midnight UTC of its day.
package dates

import (
	"strconv"
	"strings"
	"time"
)

const (
	DisplayLayout = "02-01-2006"
	InputLayout   = "2006-01-02"
)

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/1/2",
	"2/1/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Parse reads a stored or user-entered date. The layout is chosen by the
// width of the first hyphen-separated segment: one or two digits means day
// first, four means year first. Anything else is tried against a short list
// of common layouts. Slash dates are day first as well, like the stored form.
func Parse(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}

	if parts := strings.Split(s, "-"); len(parts) == 3 {
		switch len(parts[0]) {
		case 1, 2:
			return fromParts(parts[2], parts[1], parts[0])
		case 4:
			if t, ok := fromParts(parts[0], parts[1], parts[2]); ok {
				return t, true
			}
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), true
		}
	}
	return time.Time{}, false
}

func fromParts(yearText string, monthText string, dayText string) (time.Time, bool) {
	year, err := strconv.Atoi(yearText)
	if err != nil || year < 1 || year > 9999 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(monthText)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises 31-02 into March; reject instead.
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Format renders the stored DD-MM-YYYY form.
func Format(t time.Time) string {
	return t.Format(DisplayLayout)
}

// ToInputForm renders the YYYY-MM-DD form used by date inputs.
func ToInputForm(t time.Time) string {
	return t.Format(InputLayout)
}

// Canonical re-renders text in DD-MM-YYYY, or returns "" when it cannot be
// parsed.
func Canonical(text string) string {
	t, ok := Parse(text)
	if !ok {
		return ""
	}
	return Format(t)
}

// Today is the calendar date of now as seen in loc.
func Today(loc *time.Location, now time.Time) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return midnight(now.In(loc))
}

// After reports whether a falls on a later day than b.
func After(a time.Time, b time.Time) bool {
	return midnight(a).After(midnight(b))
}

// OnOrBefore reports whether a falls on or before the day of b.
func OnOrBefore(a time.Time, b time.Time) bool {
	return !After(a, b)
}
