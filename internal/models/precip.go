// Package models defines the domain entities of the precipitation platform:
// station metadata, hourly measurements in wide and long form and the derived
// daily aggregates served by the read API.
package models

import (
	"fmt"
	"sort"
	"time"
)

// HoursPerDay is the number of hour columns in a wide-format table.
const HoursPerDay = 24

// Station represents one precipitation measuring station as stored in the
// `stations` table. Station names are unique and act as the identity key
// during ingestion; numeric IDs are internal to the store.
type Station struct {
	ID        int64   `json:"-" db:"id"`
	Name      string  `json:"name" db:"name"`
	Elevation float64 `json:"elevation" db:"elevation"`
	Lat       float64 `json:"lat" db:"lat"`
	Lon       float64 `json:"lon" db:"lon"`
	IDChmu    string  `json:"id_chmu" db:"id_chmu"`
	Type      string  `json:"type" db:"type"`
}

// StationInfo is the public shape of a station as exposed by the dashboard
// read API. Elevation is reported in whole meters.
type StationInfo struct {
	Name      string  `json:"name"`
	Elevation int     `json:"elevation"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	IDChmu    string  `json:"id_chmu"`
	Type      string  `json:"type"`
}

// Info converts a stored station row to its public representation.
func (s Station) Info() StationInfo {
	return StationInfo{
		Name:      s.Name,
		Elevation: int(s.Elevation),
		Lat:       s.Lat,
		Lon:       s.Lon,
		IDChmu:    s.IDChmu,
		Type:      s.Type,
	}
}

// LongRecord is one (station, hour) observation in canonical long format.
// Datetime is the midpoint of the hour-long measurement interval, e.g.
// 22:30 for the hour column "23". Amount is nil for missing measurements;
// nil amounts are carried through reshaping and dropped before insert.
type LongRecord struct {
	Station  string
	Amount   *float64
	Datetime time.Time
}

// Hour returns the 1-based hour column (1..24) this record belongs to.
func (r LongRecord) Hour() int {
	return r.Datetime.Hour() + 1
}

// Date returns midnight of the record's measurement day.
func (r LongRecord) Date() time.Time {
	d := r.Datetime
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// DailyPrecipitation is a derived (station, date, amount) triple where amount
// is the sum of the station's hourly measurements for that calendar day. It
// is computed by the store on read and never materialized.
type DailyPrecipitation struct {
	Station string    `json:"station" db:"station"`
	Date    time.Time `json:"date" db:"date"`
	Amount  float64   `json:"amount" db:"amount"`
}

// WideRow is one station's row of a wide-format day table: 24 nullable
// hour cells, Hours[h-1] holding the amount for hour column h.
type WideRow struct {
	Station string
	Hours   [HoursPerDay]*float64
}

// WideDayTable is one day of measurements in the source's wide format, one
// row per station. It exists only as the wire shape of the remote source and
// as the on-disk CSV checkpoint.
type WideDayTable struct {
	Rows []WideRow
}

// ToLong reshapes the table into long-format records for the given
// measurement day. Every hour cell is emitted, including nil amounts, so a
// table with r rows yields exactly 24*r records. The record timestamp is
// placed at the midpoint of the measurement interval: date + (h - 0.5) hours.
func (t *WideDayTable) ToLong(date time.Time) []LongRecord {
	records := make([]LongRecord, 0, len(t.Rows)*HoursPerDay)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	for _, row := range t.Rows {
		for h := 1; h <= HoursPerDay; h++ {
			records = append(records, LongRecord{
				Station:  row.Station,
				Amount:   row.Hours[h-1],
				Datetime: day.Add(time.Duration(h)*time.Hour - 30*time.Minute),
			})
		}
	}
	return records
}

// ToWide pivots long-format records of a single day back into a wide table.
// The hour column is recovered as Datetime.Hour() + 1, making ToWide a left
// inverse of ToLong up to row ordering (rows come out sorted by station).
// Records for the same (station, hour) pair are rejected.
func ToWide(records []LongRecord) (*WideDayTable, error) {
	byStation := make(map[string]*WideRow)
	names := make([]string, 0)
	for _, rec := range records {
		row, ok := byStation[rec.Station]
		if !ok {
			row = &WideRow{Station: rec.Station}
			byStation[rec.Station] = row
			names = append(names, rec.Station)
		}
		h := rec.Hour()
		if row.Hours[h-1] != nil {
			return nil, fmt.Errorf("duplicate measurement for station %q hour %d", rec.Station, h)
		}
		row.Hours[h-1] = rec.Amount
	}

	sort.Strings(names)
	table := &WideDayTable{Rows: make([]WideRow, 0, len(byStation))}
	for _, name := range names {
		table.Rows = append(table.Rows, *byStation[name])
	}
	return table, nil
}

// Stations returns the station names of the table's rows in table order.
func (t *WideDayTable) Stations() []string {
	names := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		names[i] = row.Station
	}
	return names
}

// UnknownStationError reports a scraped station name with no canonical
// counterpart, either during name translation or when the staged insert
// cannot resolve the name against the stations table. Operators extend the
// reference mapping when this surfaces.
type UnknownStationError struct {
	Station string
}

func (e *UnknownStationError) Error() string {
	return fmt.Sprintf("station %q has no canonical mapping", e.Station)
}
