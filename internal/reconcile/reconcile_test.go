package reconcile

import (
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMissingDates(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		persisted  []string
		want       []string
	}{
		{
			name:       "all candidates missing",
			candidates: []string{"2024-03-05", "2024-03-06"},
			persisted:  nil,
			want:       []string{"2024-03-05", "2024-03-06"},
		},
		{
			name:       "identical sets yield nothing",
			candidates: []string{"2024-03-05", "2024-03-06"},
			persisted:  []string{"2024-03-05", "2024-03-06"},
			want:       []string{},
		},
		{
			name:       "partial overlap",
			candidates: []string{"2024-03-04", "2024-03-05", "2024-03-06"},
			persisted:  []string{"2024-03-05"},
			want:       []string{"2024-03-04", "2024-03-06"},
		},
		{
			name:       "persisted-only dates are ignored",
			candidates: []string{"2024-03-06"},
			persisted:  []string{"2024-03-01", "2024-03-02", "2024-03-06"},
			want:       []string{},
		},
		{
			name:       "duplicates collapse and result is sorted",
			candidates: []string{"2024-03-06", "2024-03-04", "2024-03-06"},
			persisted:  nil,
			want:       []string{"2024-03-04", "2024-03-06"},
		},
		{
			name:       "empty candidates",
			candidates: nil,
			persisted:  []string{"2024-03-05"},
			want:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingDates(tt.candidates, tt.persisted)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MissingDates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMissingDates_Idempotent(t *testing.T) {
	candidates := []string{"2024-03-06", "2024-03-04"}
	persisted := []string{"2024-03-05"}

	first := MissingDates(candidates, persisted)
	second := MissingDates(first, persisted)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second application changed result: %v vs %v", first, second)
	}
}

func TestRecentDates(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC))

	got := RecentDates(clock, 1, 7)
	want := []string{
		"2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06",
		"2024-03-07", "2024-03-08", "2024-03-09",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RecentDates(1, 7) = %v, want %v", got, want)
	}
}

func TestRecentDates_IncludesToday(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC))

	got := RecentDates(clock, 0, 2)
	want := []string{"2024-03-08", "2024-03-09", "2024-03-10"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RecentDates(0, 2) = %v, want %v", got, want)
	}
}

func TestNewestDate(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"2024-03-05"}, "2024-03-05"},
		{"unsorted", []string{"2024-03-05", "2024-03-09", "2024-03-01"}, "2024-03-09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewestDate(tt.dates); got != tt.want {
				t.Errorf("NewestDate(%v) = %q, want %q", tt.dates, got, tt.want)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	parsed, err := ParseAll([]string{"2024-03-05", "2024-03-06"})
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("ParseAll() returned %d dates, want 2", len(parsed))
	}

	if _, err := ParseAll([]string{"2024-03-05", "not-a-date"}); err == nil {
		t.Error("ParseAll() accepted an invalid date")
	}
}
