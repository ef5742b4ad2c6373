// Package dates provides parsing and formatting of the two textual date
// formats used by the precipitation source: ISO (2023-10-02) and Czech
// day-first (2.10.2023).
package dates

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// ISOFormat is the canonical date layout used for file names,
	// database exchange and the read API.
	ISOFormat = "2006-01-02"
	// DayFirstFormat is the layout used by the remote source
	// (day and month without leading zeros also accepted).
	DayFirstFormat = "2.1.2006"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FormatError reports a date string that matches neither supported format
// or names an invalid calendar date.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("date %q is not a valid ISO or day-first date", e.Value)
}

// Parse converts a date string to a time.Time. ISO format is tried first,
// then day-first. Returns a *FormatError when neither matches.
func Parse(text string) (time.Time, error) {
	if t, err := time.Parse(ISOFormat, text); err == nil {
		return t, nil
	}
	if t, err := time.Parse(DayFirstFormat, text); err == nil {
		return t, nil
	}
	return time.Time{}, &FormatError{Value: text}
}

// Format renders a time as an ISO date string.
func Format(t time.Time) string {
	return t.Format(ISOFormat)
}

// IsISODate reports whether s is a strictly formatted YYYY-MM-DD string.
// Used to filter stray entries when scanning checkpoint directories.
func IsISODate(s string) bool {
	if !isoDatePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(ISOFormat, s)
	return err == nil
}

// Midnight truncates t to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of whole calendar days from to until from
// (positive when `from` is later). Only the calendar dates count: clock
// times and locations are ignored, so a local now compares correctly
// against a UTC-parsed date.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(f.Sub(t).Hours() / 24)
}
