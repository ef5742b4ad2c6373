package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/internal/reconcile"
	"github.com/danekpavel/precipitation/internal/repository"
	"github.com/danekpavel/precipitation/pkg/logging"
)

// NameTranslator maps stored station names to their canonical dashboard
// names. *translate.Translator satisfies this.
type NameTranslator interface {
	Translate(names []string) ([]string, error)
}

// DailyFilter restricts a daily precipitation query. Nil fields match
// everything.
type DailyFilter struct {
	Station   *string
	StartDate *time.Time
	EndDate   *time.Time
}

// PrecipService serves the dashboard read API from an in-memory cache of the
// store's daily aggregates. Hourly data changes at most once a day, so the
// cache is verified against the store's newest measured date at most once per
// refresh interval and reloaded only when a newer date appears.
type PrecipService struct {
	repo            repository.PrecipRepository
	translator      NameTranslator
	clock           clockwork.Clock
	logger          *logging.StructuredLogger
	refreshInterval time.Duration

	mu         sync.Mutex
	stations   []models.StationInfo
	daily      []models.DailyPrecipitation
	loaded     bool
	newestDate string
	lastCheck  time.Time
}

// NewPrecipService creates a new read service.
func NewPrecipService(
	repo repository.PrecipRepository,
	translator NameTranslator,
	clock clockwork.Clock,
	logger *logging.StructuredLogger,
	refreshInterval time.Duration,
) *PrecipService {
	return &PrecipService{
		repo:            repo,
		translator:      translator,
		clock:           clock,
		logger:          logger,
		refreshInterval: refreshInterval,
	}
}

// GetStationsData returns the public shape of all stations, with names
// translated to the canonical vocabulary. Stations change only through the
// one-time import, so the result is cached after the first load.
func (s *PrecipService) GetStationsData(ctx context.Context) ([]models.StationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stations != nil {
		return s.stations, nil
	}

	rows, err := s.repo.GetStationsData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stations: %w", err)
	}

	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}
	canonical, err := s.translator.Translate(names)
	if err != nil {
		return nil, fmt.Errorf("failed to translate station names: %w", err)
	}

	stations := make([]models.StationInfo, len(rows))
	for i, row := range rows {
		info := row.Info()
		info.Name = canonical[i]
		stations[i] = info
	}

	s.stations = stations
	s.logger.Info(ctx, "[CACHE_STATIONS] Station cache loaded", logging.Fields{
		"stations": len(stations),
	})
	return stations, nil
}

// GetDailyPrecipitation returns daily precipitation sums matching the filter,
// served from the cache.
func (s *PrecipService) GetDailyPrecipitation(ctx context.Context, filter DailyFilter) ([]models.DailyPrecipitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}

	matched := make([]models.DailyPrecipitation, 0, len(s.daily))
	for _, d := range s.daily {
		if filter.Station != nil && d.Station != *filter.Station {
			continue
		}
		if filter.StartDate != nil && d.Date.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && d.Date.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, d)
	}
	return matched, nil
}

// HealthCheck verifies the backing store is reachable.
func (s *PrecipService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// refreshLocked reloads the daily cache when a check is due and the store
// holds a newer measured date than the cache. Caller holds s.mu.
func (s *PrecipService) refreshLocked(ctx context.Context) error {
	now := s.clock.Now()
	if s.loaded && now.Sub(s.lastCheck) < s.refreshInterval {
		return nil
	}

	measured, err := s.repo.GetMeasuredDates(ctx)
	if err != nil {
		return fmt.Errorf("failed to get measured dates: %w", err)
	}
	s.lastCheck = now

	newest := reconcile.NewestDate(measured)
	if s.loaded && newest == s.newestDate {
		return nil
	}

	rows, err := s.repo.GetDailyPrecipitation(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daily precipitation: %w", err)
	}

	names := make([]string, len(rows))
	for i, d := range rows {
		names[i] = d.Station
	}
	canonical, err := s.translator.Translate(names)
	if err != nil {
		return fmt.Errorf("failed to translate station names: %w", err)
	}

	// The repository keeps ownership of its slice; translate into a copy.
	daily := make([]models.DailyPrecipitation, len(rows))
	for i, d := range rows {
		d.Station = canonical[i]
		daily[i] = d
	}

	s.daily = daily
	s.loaded = true
	s.newestDate = newest
	s.logger.Info(ctx, "[CACHE_REFRESH] Daily precipitation cache reloaded", logging.Fields{
		"rows":        len(daily),
		"newest_date": newest,
	})
	return nil
}
