// Package reconcile decides which measurement dates still need to flow
// through the pipeline by diffing candidate dates against dates already
// persisted.
package reconcile

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/danekpavel/precipitation/internal/dates"
)

// MissingDates returns the candidate dates absent from persisted, ascending.
// Candidates come either from on-disk checkpoints (back-fill) or from the
// source's offset window (download); persisted must be a single consistent
// snapshot of the store's measured dates.
func MissingDates(candidates, persisted []string) []string {
	have := make(map[string]struct{}, len(persisted))
	for _, d := range persisted {
		have[d] = struct{}{}
	}

	missing := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, d := range candidates {
		if _, ok := have[d]; ok {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		missing = append(missing, d)
	}
	sort.Strings(missing)
	return missing
}

// RecentDates returns the ISO dates of the offset window
// [today-maxOffset, today-minOffset], ascending.
func RecentDates(clock clockwork.Clock, minOffset, maxOffset int) []string {
	today := dates.Midnight(clock.Now())
	window := make([]string, 0, maxOffset-minOffset+1)
	for offset := maxOffset; offset >= minOffset; offset-- {
		window = append(window, dates.Format(today.AddDate(0, 0, -offset)))
	}
	return window
}

// NewestDate returns the lexicographically greatest ISO date, or "" for an
// empty slice. ISO dates order the same way as calendar dates.
func NewestDate(isoDates []string) string {
	newest := ""
	for _, d := range isoDates {
		if d > newest {
			newest = d
		}
	}
	return newest
}

// ParseAll parses every date, failing on the first invalid one.
func ParseAll(isoDates []string) ([]time.Time, error) {
	parsed := make([]time.Time, len(isoDates))
	for i, d := range isoDates {
		t, err := dates.Parse(d)
		if err != nil {
			return nil, err
		}
		parsed[i] = t
	}
	return parsed, nil
}
