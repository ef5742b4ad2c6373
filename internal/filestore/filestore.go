// Package filestore persists one-day precipitation tables as CSV files named
// by ISO date. The files serve as a durability checkpoint between the remote
// fetch and the database load.
package filestore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danekpavel/precipitation/internal/dates"
	"github.com/danekpavel/precipitation/internal/models"
)

// stationColumn is the station name header used by the source vocabulary.
const stationColumn = "Stanice"

// FileStore reads and writes daily checkpoint files in a single directory.
// Single-writer: no file locking is performed.
type FileStore struct {
	dir string
}

// New creates a FileStore rooted at dir.
func New(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// path derives the checkpoint file path for an ISO date string.
func (s *FileStore) path(date string) string {
	return filepath.Join(s.dir, date+".csv")
}

// Write saves a one-day table under the given ISO date, creating the
// directory when needed. Missing measurements are written as empty cells.
func (s *FileStore) Write(table *models.WideDayTable, date string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.Create(s.path(date))
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range table.Rows {
		record := make([]string, 1+models.HoursPerDay)
		record[0] = row.Station
		for h, amount := range row.Hours {
			if amount != nil {
				record[h+1] = strconv.FormatFloat(*amount, 'f', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row for station %q: %w", row.Station, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush checkpoint file: %w", err)
	}
	return nil
}

// Read loads the one-day table checkpointed under the given ISO date.
// Columns are located by header name so column order is not significant.
func (s *FileStore) Read(date string) (*models.WideDayTable, error) {
	f, err := os.Open(s.path(date))
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint for %s: %w", date, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint for %s: %w", date, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("checkpoint for %s is empty", date)
	}

	cols, err := columnIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("checkpoint for %s: %w", date, err)
	}

	table := &models.WideDayTable{Rows: make([]models.WideRow, 0, len(rows)-1)}
	for _, record := range rows[1:] {
		row := models.WideRow{Station: record[cols[stationColumn]]}
		for h := 1; h <= models.HoursPerDay; h++ {
			cell := record[cols[strconv.Itoa(h)]]
			if cell == "" {
				continue
			}
			amount, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("checkpoint for %s: station %q hour %d: invalid amount %q",
					date, row.Station, h, cell)
			}
			row.Hours[h-1] = &amount
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ListDates scans the storage directory and returns the ISO dates of all
// checkpoint files, ascending. Files whose base name is not a strict
// YYYY-MM-DD date are ignored.
func (s *FileStore) ListDates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}

	found := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		date := strings.TrimSuffix(name, ".csv")
		if dates.IsISODate(date) {
			found = append(found, date)
		}
	}
	sort.Strings(found)
	return found, nil
}

// header builds the CSV header row: Stanice,1,...,24.
func header() []string {
	h := make([]string, 1+models.HoursPerDay)
	h[0] = stationColumn
	for i := 1; i <= models.HoursPerDay; i++ {
		h[i] = strconv.Itoa(i)
	}
	return h
}

// columnIndex maps expected column names to their positions in the header.
func columnIndex(headerRow []string) (map[string]int, error) {
	index := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		index[name] = i
	}
	for _, want := range header() {
		if _, ok := index[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}
	return index, nil
}
