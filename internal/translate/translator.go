// Package translate maps station names between the scraped vocabulary and
// the canonical vocabulary, and loads the station reference table the
// mapping is built from.
package translate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/danekpavel/precipitation/internal/models"
)

// Reference CSV column names. The scraped name doubles as the stored station
// name; `final` is the canonical name shown by the dashboard.
const (
	colScrapedName   = "precip_known"
	colCanonicalName = "final"
	colElevation     = "ELEVATION"
	colLat           = "Y"
	colLon           = "X"
	colIDChmu        = "ID"
	colType          = "STATION_TYP"
)

// Translator performs strict element-wise station name translation. Built
// once from the reference table at process start.
type Translator struct {
	mapping map[string]string
}

// New creates a Translator from an explicit mapping.
func New(mapping map[string]string) *Translator {
	return &Translator{mapping: mapping}
}

// LoadTranslator builds a Translator from the station reference CSV.
func LoadTranslator(path string) (*Translator, error) {
	rows, cols, err := readReference(path)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		mapping[row[cols[colScrapedName]]] = row[cols[colCanonicalName]]
	}
	return New(mapping), nil
}

// Translate maps every name to its canonical counterpart. There is no
// identity fallback: a name absent from the mapping fails the whole call
// with a *models.UnknownStationError.
func (t *Translator) Translate(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		canonical, ok := t.mapping[name]
		if !ok {
			return nil, &models.UnknownStationError{Station: name}
		}
		out[i] = canonical
	}
	return out, nil
}

// LoadStations reads the station reference CSV into station rows for the
// one-time bulk import.
func LoadStations(path string) ([]models.Station, error) {
	rows, cols, err := readReference(path)
	if err != nil {
		return nil, err
	}

	stations := make([]models.Station, 0, len(rows))
	for i, row := range rows {
		elevation, err := strconv.ParseFloat(row[cols[colElevation]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid elevation %q: %w", i+1, row[cols[colElevation]], err)
		}
		lat, err := strconv.ParseFloat(row[cols[colLat]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid latitude %q: %w", i+1, row[cols[colLat]], err)
		}
		lon, err := strconv.ParseFloat(row[cols[colLon]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid longitude %q: %w", i+1, row[cols[colLon]], err)
		}

		stations = append(stations, models.Station{
			Name:      row[cols[colScrapedName]],
			Elevation: elevation,
			Lat:       lat,
			Lon:       lon,
			IDChmu:    row[cols[colIDChmu]],
			Type:      row[cols[colType]],
		})
	}
	return stations, nil
}

// readReference reads the reference CSV and indexes its columns by name.
func readReference(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open station reference: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read station reference: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("station reference %s is empty", path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[name] = i
	}
	for _, want := range []string{colScrapedName, colCanonicalName, colElevation, colLat, colLon, colIDChmu, colType} {
		if _, ok := cols[want]; !ok {
			return nil, nil, fmt.Errorf("station reference %s: missing column %q", path, want)
		}
	}

	return rows[1:], cols, nil
}
