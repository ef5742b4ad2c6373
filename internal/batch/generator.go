// Package batch turns a list of checkpointed dates into a bounded sequence
// of long-format record batches for the staged database insert.
package batch

import (
	"context"
	"fmt"

	"github.com/danekpavel/precipitation/internal/dates"
	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/pkg/logging"
)

// TableReader reads one day's wide table, keyed by ISO date.
// *filestore.FileStore satisfies this.
type TableReader interface {
	Read(date string) (*models.WideDayTable, error)
}

// TooLargeError reports a single date whose record count exceeds the batch
// row ceiling. One day is never split across batches, so this is fatal.
type TooLargeError struct {
	Date    string
	Rows    int
	MaxRows int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("data for %s has more rows (%d) than allowed by max rows (%d); consider increasing the limit",
		e.Date, e.Rows, e.MaxRows)
}

// Generator lazily yields batches of long-format records across many dates.
// Usage follows the bufio.Scanner idiom:
//
//	gen := batch.NewGenerator(store, dates, maxRows, logger)
//	for gen.Next() {
//	    insert(gen.Batch())
//	}
//	if err := gen.Err(); err != nil { ... }
//
// Each batch holds at most maxRows records and whole dates only: when a
// date's records would overflow the open batch, the batch is yielded first
// and the date starts the next one. Single-threaded and pull-based; the
// caller controls pacing. Not restartable.
type Generator struct {
	reader  TableReader
	dates   []string
	maxRows int
	logger  *logging.StructuredLogger

	i       int
	pending []models.LongRecord
	batch   []models.LongRecord
	err     error
	done    bool
}

// NewGenerator creates a Generator over the given ISO dates, in order.
func NewGenerator(reader TableReader, isoDates []string, maxRows int, logger *logging.StructuredLogger) *Generator {
	return &Generator{
		reader:  reader,
		dates:   isoDates,
		maxRows: maxRows,
		logger:  logger,
	}
}

// Next advances to the next batch. It returns false when the dates are
// exhausted or an error occurred; Err distinguishes the two.
func (g *Generator) Next() bool {
	if g.err != nil || g.done {
		return false
	}

	open := g.pending
	g.pending = nil

	for g.i < len(g.dates) {
		date := g.dates[g.i]
		records, err := g.readDate(date)
		if err != nil {
			g.err = err
			return false
		}

		if len(open)+len(records) > g.maxRows {
			// Close the open batch; this date's records start the next one.
			g.pending = records
			g.i++
			g.batch = open
			return true
		}

		open = append(open, records...)
		g.i++
	}

	g.done = true
	if len(open) == 0 {
		return false
	}
	g.batch = open
	return true
}

// Batch returns the records produced by the last successful Next call.
func (g *Generator) Batch() []models.LongRecord {
	return g.batch
}

// Err returns the first error encountered, if any.
func (g *Generator) Err() error {
	return g.err
}

// readDate loads one date's table and reshapes it to long format, enforcing
// the per-date row ceiling.
func (g *Generator) readDate(date string) ([]models.LongRecord, error) {
	day, err := dates.Parse(date)
	if err != nil {
		return nil, err
	}

	table, err := g.reader.Read(date)
	if err != nil {
		return nil, err
	}

	records := table.ToLong(day)
	if len(records) > g.maxRows {
		err := &TooLargeError{Date: date, Rows: len(records), MaxRows: g.maxRows}
		if g.logger != nil {
			g.logger.Error(context.Background(), "[BATCH_TOO_LARGE] Single date exceeds batch row limit", logging.Fields{
				"date":     date,
				"rows":     len(records),
				"max_rows": g.maxRows,
			}, err)
		}
		return nil, err
	}
	return records, nil
}
