// Package repository provides data access for the two-table precipitation
// schema: station metadata and hourly measurements.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/pkg/database"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

// BatchSource is a pull-based sequence of record batches, satisfied by
// *batch.Generator.
type BatchSource interface {
	Next() bool
	Batch() []models.LongRecord
	Err() error
}

// PrecipRepository provides data access for precipitation data
type PrecipRepository interface {
	// Station operations
	GetStationsData(ctx context.Context) ([]models.Station, error)
	InsertStations(ctx context.Context, stations []models.Station) error

	// Measurement operations
	GetDailyPrecipitation(ctx context.Context) ([]models.DailyPrecipitation, error)
	GetMeasuredDates(ctx context.Context) ([]string, error)
	InsertPrecipitation(ctx context.Context, batches BatchSource) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// precipRepository implements PrecipRepository
type precipRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPrecipRepository creates a new precipitation repository
func NewPrecipRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PrecipRepository {
	return &precipRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// GetStationsData retrieves all station rows.
func (r *precipRepository) GetStationsData(ctx context.Context) ([]models.Station, error) {
	query := `
		SELECT id, name, elevation, lat, lon, id_chmu, type
		FROM stations
		ORDER BY name
	`

	var stations []models.Station
	err := r.db.SelectContext(ctx, "get_stations", &stations, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get stations: %w", err)
	}

	return stations, nil
}

// GetDailyPrecipitation aggregates hourly rows into (station, date, amount)
// triples on the server, so hourly-resolution data never crosses the wire.
func (r *precipRepository) GetDailyPrecipitation(ctx context.Context) ([]models.DailyPrecipitation, error) {
	query := `
		WITH daily AS (
			SELECT
				station_id,
				DATE(datetime) AS day,
				SUM(amount) AS rain
			FROM hourly_precip
			GROUP BY station_id, day)
		SELECT s.name AS station, d.day AS date, d.rain AS amount
		FROM daily d
		JOIN stations s ON d.station_id = s.id
		ORDER BY s.name, d.day
	`

	var daily []models.DailyPrecipitation
	err := r.db.SelectContext(ctx, "get_daily_precipitation", &daily, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily precipitation: %w", err)
	}

	return daily, nil
}

// GetMeasuredDates returns the distinct dates present in the store,
// ascending. A date counts as present only when its 23:00 hour exists:
// days are written in one batch covering all 24 hours, so the last hour
// is a completeness proxy.
func (r *precipRepository) GetMeasuredDates(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT DATE(datetime)::text AS day
		FROM hourly_precip
		WHERE EXTRACT(HOUR FROM datetime) = 23
		ORDER BY day
	`

	var measured []string
	err := r.db.SelectContext(ctx, "get_measured_dates", &measured, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get measured dates: %w", err)
	}

	return measured, nil
}

const (
	createStagingQuery = `
		CREATE TEMPORARY TABLE staging_precip (
			station VARCHAR(100),
			amount NUMERIC(4, 1),
			datetime TIMESTAMP
		)
	`

	unknownStationsQuery = `
		SELECT DISTINCT t.station
		FROM staging_precip t
		LEFT JOIN stations s ON t.station = s.name
		WHERE s.id IS NULL
		ORDER BY t.station
	`

	// ON CONFLICT DO NOTHING makes replaying a partially committed batch
	// after a crash a no-op instead of a duplicate-key failure.
	resolveInsertQuery = `
		INSERT INTO hourly_precip (station_id, datetime, amount)
		SELECT s.id, t.datetime, t.amount
		FROM staging_precip t
		JOIN stations s ON t.station = s.name
		ON CONFLICT (station_id, datetime) DO NOTHING
	`

	clearStagingQuery = `TRUNCATE staging_precip`
)

// InsertPrecipitation loads record batches into hourly_precip through a
// connection-scoped temporary staging table: raw (station, amount, datetime)
// rows are bulk-copied in, station names are resolved to IDs with a single
// join-insert, and the whole batch commits as one transaction. A failed
// batch is rolled back, logged and skipped; remaining batches are still
// attempted and the per-batch errors are returned aggregated.
func (r *precipRepository) InsertPrecipitation(ctx context.Context, batches BatchSource) error {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	// Closing the connection drops the temporary table with it.
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, createStagingQuery); err != nil {
		r.metrics.RecordDBError("staging_create_error")
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	var errs *multierror.Error
	batchNum := 0
	for batches.Next() {
		batchNum++
		records := dropMissingAmounts(batches.Batch())
		if len(records) == 0 {
			continue
		}

		start := time.Now()
		if err := r.insertBatch(ctx, conn, records); err != nil {
			r.metrics.RecordIngestionError("batch_insert_error")
			r.logger.Error(ctx, "[REPO_BATCH_ERROR] Batch insert failed, continuing with next batch", logging.Fields{
				"batch": batchNum,
				"rows":  len(records),
			}, err)
			errs = multierror.Append(errs, fmt.Errorf("batch %d: %w", batchNum, err))
			continue
		}

		r.metrics.IngestionRecordsTotal.Add(float64(len(records)))
		r.metrics.IngestionBatchSize.Observe(float64(len(records)))
		r.logger.Info(ctx, "[REPO_BATCH_INSERT] Batch inserted", logging.Fields{
			"batch":       batchNum,
			"rows":        len(records),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}

	if err := batches.Err(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("batch source: %w", err))
	}

	return errs.ErrorOrNil()
}

// insertBatch stages and resolves one batch inside a single transaction.
func (r *precipRepository) insertBatch(ctx context.Context, conn *sqlx.Conn, records []models.LongRecord) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("staging_precip", "station", "amount", "datetime"))
	if err != nil {
		return fmt.Errorf("failed to prepare staging copy: %w", err)
	}

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Station, *rec.Amount, rec.Datetime); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to stage row for station %q: %w", rec.Station, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush staging copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close staging copy: %w", err)
	}

	// Names the join-insert would silently drop are surfaced instead, so
	// operators can extend the reference mapping.
	var unknown []string
	if err := tx.SelectContext(ctx, &unknown, unknownStationsQuery); err != nil {
		return fmt.Errorf("failed to check staged stations: %w", err)
	}
	if len(unknown) > 0 {
		return &models.UnknownStationError{Station: unknown[0]}
	}

	if _, err := tx.ExecContext(ctx, resolveInsertQuery); err != nil {
		return fmt.Errorf("failed to resolve and insert batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, clearStagingQuery); err != nil {
		return fmt.Errorf("failed to clear staging table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// InsertStations bulk-loads station rows. One-time import into an empty
// table; no conflict handling.
func (r *precipRepository) InsertStations(ctx context.Context, stations []models.Station) error {
	if len(stations) == 0 {
		return nil
	}

	query := `
		INSERT INTO stations (name, elevation, lat, lon, id_chmu, type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	tx, err := r.db.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range stations {
		if _, err := stmt.ExecContext(ctx, s.Name, s.Elevation, s.Lat, s.Lon, s.IDChmu, s.Type); err != nil {
			return fmt.Errorf("failed to insert station %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stations: %w", err)
	}

	r.logger.Info(ctx, "[REPO_STATIONS] Stations inserted", logging.Fields{
		"count": len(stations),
	})

	return nil
}

// HealthCheck performs a repository health check
func (r *precipRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// dropMissingAmounts filters out records whose amount is nil before staging.
func dropMissingAmounts(records []models.LongRecord) []models.LongRecord {
	kept := make([]models.LongRecord, 0, len(records))
	for _, rec := range records {
		if rec.Amount != nil {
			kept = append(kept, rec)
		}
	}
	return kept
}
