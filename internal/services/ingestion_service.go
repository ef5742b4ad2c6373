package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/danekpavel/precipitation/internal/batch"
	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/internal/reconcile"
	"github.com/danekpavel/precipitation/internal/repository"
	"github.com/danekpavel/precipitation/internal/translate"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

// CheckpointStore is the daily checkpoint file storage used by ingestion.
// *filestore.FileStore satisfies this.
type CheckpointStore interface {
	Write(table *models.WideDayTable, date string) error
	Read(date string) (*models.WideDayTable, error)
	ListDates() ([]string, error)
}

// DayFetcher downloads the one-day table for a calendar date.
// *fetch.Fetcher satisfies this.
type DayFetcher interface {
	FetchByDate(ctx context.Context, date string, allowToday bool) (*models.WideDayTable, error)
}

// DownloadResult summarizes one DownloadNewData run.
type DownloadResult struct {
	Window     []string
	Downloaded []string
	Failed     []string
}

// IngestionService drives the download / checkpoint / load pipeline:
// recent days are scraped and checkpointed to disk, checkpointed days
// missing from the store are reshaped, batched and inserted.
type IngestionService struct {
	repo      repository.PrecipRepository
	store     CheckpointStore
	fetcher   DayFetcher
	clock     clockwork.Clock
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	minOffset int
	maxOffset int
	maxRows   int
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	repo repository.PrecipRepository,
	store CheckpointStore,
	fetcher DayFetcher,
	clock clockwork.Clock,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	minOffset, maxOffset, maxRows int,
) *IngestionService {
	return &IngestionService{
		repo:      repo,
		store:     store,
		fetcher:   fetcher,
		clock:     clock,
		logger:    logger,
		metrics:   metricsCollector,
		minOffset: minOffset,
		maxOffset: maxOffset,
		maxRows:   maxRows,
	}
}

// DownloadNewData checkpoints every date of the source's offset window that
// has no checkpoint file yet. A date that fails to download is logged and
// skipped so one bad day does not block the rest of the window; the
// per-date errors come back aggregated alongside the summary.
func (s *IngestionService) DownloadNewData(ctx context.Context) (*DownloadResult, error) {
	window := reconcile.RecentDates(s.clock, s.minOffset, s.maxOffset)

	onDisk, err := s.store.ListDates()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	missing := reconcile.MissingDates(window, onDisk)
	result := &DownloadResult{Window: window}

	s.logger.Info(ctx, "[DOWNLOAD_START] Checking offset window for new dates", logging.Fields{
		"window_from": window[0],
		"window_to":   window[len(window)-1],
		"missing":     len(missing),
	})

	var errs *multierror.Error
	for _, date := range missing {
		// The window itself decides whether today is eligible; the fetcher
		// only needs to not reject offset 0 around midnight re-computation.
		table, err := s.fetcher.FetchByDate(ctx, date, true)
		if err != nil {
			s.logger.Error(ctx, "[DOWNLOAD_ERROR] Failed to download date, skipping", logging.Fields{
				"date": date,
			}, err)
			result.Failed = append(result.Failed, date)
			errs = multierror.Append(errs, fmt.Errorf("date %s: %w", date, err))
			continue
		}
		if err := s.store.Write(table, date); err != nil {
			s.logger.Error(ctx, "[DOWNLOAD_ERROR] Failed to checkpoint date, skipping", logging.Fields{
				"date": date,
			}, err)
			result.Failed = append(result.Failed, date)
			errs = multierror.Append(errs, fmt.Errorf("date %s: %w", date, err))
			continue
		}

		result.Downloaded = append(result.Downloaded, date)
		s.logger.Info(ctx, "[DOWNLOAD_DATE] Date downloaded and checkpointed", logging.Fields{
			"date":     date,
			"stations": len(table.Rows),
		})
	}

	return result, errs.ErrorOrNil()
}

// BackfillFromDisk loads every checkpointed date the store does not have yet.
func (s *IngestionService) BackfillFromDisk(ctx context.Context) error {
	onDisk, err := s.store.ListDates()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	measured, err := s.repo.GetMeasuredDates(ctx)
	if err != nil {
		return fmt.Errorf("failed to get measured dates: %w", err)
	}

	return s.UpdateForDates(ctx, reconcile.MissingDates(onDisk, measured))
}

// UpdateForDates reshapes and loads the given checkpointed dates into the
// store, batched under the row ceiling.
func (s *IngestionService) UpdateForDates(ctx context.Context, isoDates []string) error {
	if len(isoDates) == 0 {
		s.logger.Info(ctx, "[INGEST_NOOP] No dates to load", nil)
		return nil
	}

	s.logger.Info(ctx, "[INGEST_START] Loading checkpointed dates", logging.Fields{
		"dates": len(isoDates),
		"from":  isoDates[0],
		"to":    isoDates[len(isoDates)-1],
	})

	start := time.Now()
	gen := batch.NewGenerator(s.store, isoDates, s.maxRows, s.logger)
	if err := s.repo.InsertPrecipitation(ctx, gen); err != nil {
		return fmt.Errorf("failed to load dates: %w", err)
	}

	s.metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	s.logger.Info(ctx, "[INGEST_COMPLETE] Dates loaded", logging.Fields{
		"dates":       len(isoDates),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// ImportStations performs the one-time bulk import of the station reference
// table into the store.
func (s *IngestionService) ImportStations(ctx context.Context, referencePath string) error {
	stations, err := translate.LoadStations(referencePath)
	if err != nil {
		return fmt.Errorf("failed to load station reference: %w", err)
	}

	if err := s.repo.InsertStations(ctx, stations); err != nil {
		return fmt.Errorf("failed to import stations: %w", err)
	}

	s.logger.Info(ctx, "[STATIONS_IMPORT] Station reference imported", logging.Fields{
		"stations": len(stations),
	})
	return nil
}
