package dates

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "ISO date",
			text: "2023-10-02",
			want: time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "day-first date",
			text: "2.10.2023",
			want: time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "day-first with leading zeros",
			text: "02.10.2023",
			want: time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "invalid calendar date",
			text:    "32.10.2023",
			wantErr: true,
		},
		{
			name:    "not a date",
			text:    "stations",
			wantErr: true,
		},
		{
			name:    "empty string",
			text:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			}
			if tt.wantErr {
				var formatErr *FormatError
				if !errors.As(err, &formatErr) {
					t.Errorf("Parse(%q) error = %T, want *FormatError", tt.text, err)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParse_BothFormatsAgree(t *testing.T) {
	iso, err := Parse("2023-10-02")
	if err != nil {
		t.Fatalf("Parse ISO: %v", err)
	}
	dayFirst, err := Parse("2.10.2023")
	if err != nil {
		t.Fatalf("Parse day-first: %v", err)
	}
	if !iso.Equal(dayFirst) {
		t.Errorf("same date parsed differently: %v vs %v", iso, dayFirst)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	const text = "2024-02-29"
	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	if got := Format(parsed); got != text {
		t.Errorf("Format(Parse(%q)) = %q", text, got)
	}
}

func TestIsISODate(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"2023-10-02", true},
		{"2023-1-02", false},
		{"2.10.2023", false},
		{"2023-13-01", false},
		{"2023-10-02x", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsISODate(tt.s); got != tt.want {
			t.Errorf("IsISODate(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{
			name: "same day",
			from: time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC),
			to:   time.Date(2024, 3, 5, 0, 1, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "clock times do not matter",
			from: time.Date(2024, 3, 7, 0, 1, 0, 0, time.UTC),
			to:   time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC),
			want: 2,
		},
		{
			name: "negative for future target",
			from: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
			want: -3,
		},
		{
			name: "across month boundary",
			from: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 2, 27, 20, 0, 0, 0, time.UTC),
			want: 4,
		},
		{
			name: "local zone ahead of UTC against a UTC date",
			from: time.Date(2024, 3, 10, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
			to:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			want: 1,
		},
		{
			name: "local zone behind UTC against a UTC date",
			from: time.Date(2024, 3, 10, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			to:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
			want: 2,
		},
		{
			name: "summer time zone just after local midnight",
			from: time.Date(2024, 6, 10, 0, 5, 0, 0, time.FixedZone("CEST", 2*3600)),
			to:   time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.from, tt.to); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}
