// Package fetch retrieves daily precipitation tables from the hydrology
// portal, handling the portal's pagination and day-offset addressing.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/net/html"

	"github.com/danekpavel/precipitation/internal/dates"
	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

// stationColumn is the station name column of the source table.
const stationColumn = "Stanice"

// PaginationError reports that an expected structural marker could not be
// located in a source page.
type PaginationError struct {
	Marker string
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("could not locate %s marker in source page", e.Marker)
}

// DateMismatchError reports a fetched day whose embedded date differs from
// the requested one. The result must not be persisted; this defends against
// off-by-one offsets around day boundaries.
type DateMismatchError struct {
	Requested string
	Received  string
}

func (e *DateMismatchError) Error() string {
	return fmt.Sprintf("downloaded precipitation date %s differs from requested %s", e.Received, e.Requested)
}

// RangeError reports a requested date outside the supported back-fill
// window. Raised before any network call.
type RangeError struct {
	Date      string
	Offset    int
	MinOffset int
	MaxOffset int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("offset %d for date %s outside allowed range [%d, %d]",
		e.Offset, e.Date, e.MinOffset, e.MaxOffset)
}

// Fetcher downloads one-day precipitation tables. Requests within a day are
// sequential with a fixed delay between pages to respect the remote service.
type Fetcher struct {
	client    *resty.Client
	sourceURL string
	delay     time.Duration
	maxOffset int
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	clock     clockwork.Clock
}

// New creates a Fetcher for the given source URL.
func New(sourceURL string, delay time.Duration, maxOffset int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock) *Fetcher {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(2 * time.Second)

	return &Fetcher{
		client:    client,
		sourceURL: sourceURL,
		delay:     delay,
		maxOffset: maxOffset,
		logger:    logger,
		metrics:   metricsCollector,
		clock:     clock,
	}
}

// FetchDay downloads all pages of the given day offset (0 = today) and
// returns the concatenated wide table together with the measurement date
// parsed from the page. The header row is taken from page 1 only.
func (f *Fetcher) FetchDay(ctx context.Context, offset int) (*models.WideDayTable, time.Time, error) {
	start := time.Now()

	f.logger.Info(ctx, "[FETCH_START] Downloading first page", logging.Fields{
		"day_offset": offset,
	})

	doc, err := f.getPage(ctx, offset, 1)
	if err != nil {
		f.metrics.RecordFetchError("request_error")
		return nil, time.Time{}, err
	}

	pageCount, err := extractPageCount(doc)
	if err != nil {
		f.metrics.RecordFetchError("pagination_error")
		return nil, time.Time{}, err
	}
	day, err := extractDate(doc)
	if err != nil {
		f.metrics.RecordFetchError("pagination_error")
		return nil, time.Time{}, err
	}

	f.logger.Info(ctx, "[FETCH_PAGES] Total pages to be downloaded", logging.Fields{
		"day_offset": offset,
		"pages":      pageCount,
		"date":       dates.Format(day),
	})

	header, rows, err := extractTable(doc)
	if err != nil {
		f.metrics.RecordFetchError("pagination_error")
		return nil, time.Time{}, err
	}

	for page := 2; page <= pageCount; page++ {
		f.clock.Sleep(f.delay)

		doc, err := f.getPage(ctx, offset, page)
		if err != nil {
			f.metrics.RecordFetchError("request_error")
			return nil, time.Time{}, err
		}
		_, more, err := extractTable(doc)
		if err != nil {
			f.metrics.RecordFetchError("pagination_error")
			return nil, time.Time{}, fmt.Errorf("page %d: %w", page, err)
		}
		rows = append(rows, more...)
	}

	table, err := projectTable(header, rows)
	if err != nil {
		f.metrics.RecordFetchError("table_error")
		return nil, time.Time{}, err
	}

	f.metrics.FetchDayDuration.Observe(time.Since(start).Seconds())
	f.logger.Info(ctx, "[FETCH_COMPLETE] Day downloaded", logging.Fields{
		"day_offset": offset,
		"date":       dates.Format(day),
		"stations":   len(table.Rows),
	})

	return table, day, nil
}

// FetchByDate downloads the table for a specific calendar date. The date is
// converted to a day offset which must fall inside [minOffset, maxOffset];
// minOffset is 1 unless allowToday is set, because same-day data is
// incomplete. The embedded date of the result is verified against the
// request.
func (f *Fetcher) FetchByDate(ctx context.Context, date string, allowToday bool) (*models.WideDayTable, error) {
	target, err := dates.Parse(date)
	if err != nil {
		return nil, err
	}

	minOffset := 1
	if allowToday {
		minOffset = 0
	}
	offset := dates.DaysBetween(f.clock.Now(), target)
	if offset < minOffset || offset > f.maxOffset {
		err := &RangeError{Date: date, Offset: offset, MinOffset: minOffset, MaxOffset: f.maxOffset}
		f.logger.Error(ctx, "[FETCH_RANGE] Requested date outside allowed range", logging.Fields{
			"date":   date,
			"offset": offset,
		}, err)
		return nil, err
	}

	table, day, err := f.FetchDay(ctx, offset)
	if err != nil {
		return nil, err
	}

	if !day.Equal(dates.Midnight(target)) {
		err := &DateMismatchError{Requested: dates.Format(target), Received: dates.Format(day)}
		f.metrics.RecordFetchError("date_mismatch")
		f.logger.Error(ctx, "[FETCH_MISMATCH] Downloaded date differs from requested", logging.Fields{
			"requested": dates.Format(target),
			"received":  dates.Format(day),
			"offset":    offset,
		}, err)
		return nil, err
	}

	return table, nil
}

// getPage requests one subpage of one day offset and parses its HTML.
func (f *Fetcher) getPage(ctx context.Context, offset, page int) (*html.Node, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"day_offset": strconv.Itoa(offset),
			"startpage":  strconv.Itoa(page),
		}).
		Get(f.sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d for offset %d: %w", page, offset, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("source returned status %d for page %d of offset %d",
			resp.StatusCode(), page, offset)
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %d for offset %d: %w", page, offset, err)
	}

	f.metrics.FetchPagesTotal.Inc()
	return doc, nil
}
