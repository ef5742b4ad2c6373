package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/pkg/database"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

var testMetrics = metrics.NewCollector("repository_test")

func newMockRepo(t *testing.T) (PrecipRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	logger := logging.NewStructuredLogger("test", "test", logging.FatalLevel)
	logger.SetOutput(io.Discard)

	db := database.NewFromDB(sqlx.NewDb(mockDB, "sqlmock"), logger, testMetrics)
	return NewPrecipRepository(db, logger, testMetrics), mock
}

// sliceBatches feeds fixed record batches, mimicking the batch generator.
type sliceBatches struct {
	batches [][]models.LongRecord
	i       int
	err     error
}

func (s *sliceBatches) Next() bool {
	if s.i >= len(s.batches) {
		return false
	}
	s.i++
	return true
}

func (s *sliceBatches) Batch() []models.LongRecord { return s.batches[s.i-1] }
func (s *sliceBatches) Err() error                 { return s.err }

func fl(v float64) *float64 { return &v }

func testRecords() []models.LongRecord {
	return []models.LongRecord{
		{Station: "Brno", Amount: fl(2.0), Datetime: time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)},
		{Station: "Brno", Amount: nil, Datetime: time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)},
		{Station: "Cheb", Amount: fl(0.5), Datetime: time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)},
	}
}

// expectBatchInsert registers the expectations of one successfully staged
// and resolved batch. Records with nil amounts never reach the staging copy.
func expectBatchInsert(mock sqlmock.Sqlmock, records []models.LongRecord) {
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "staging_precip"`)
	for _, rec := range records {
		if rec.Amount == nil {
			continue
		}
		prep.ExpectExec().WithArgs(rec.Station, *rec.Amount, rec.Datetime).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	prep.ExpectExec().WithArgs().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("LEFT JOIN stations").
		WillReturnRows(sqlmock.NewRows([]string{"station"}))
	mock.ExpectExec("INSERT INTO hourly_precip").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("TRUNCATE staging_precip").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
}

func TestInsertPrecipitation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TEMPORARY TABLE staging_precip").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectBatchInsert(mock, testRecords())

	source := &sliceBatches{batches: [][]models.LongRecord{testRecords()}}
	if err := repo.InsertPrecipitation(context.Background(), source); err != nil {
		t.Fatalf("InsertPrecipitation() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertPrecipitation_FailedBatchSkipped(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TEMPORARY TABLE staging_precip").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// First batch fails at the resolve step and is rolled back.
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "staging_precip"`)
	prep.ExpectExec().WithArgs("Brno", 2.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("LEFT JOIN stations").
		WillReturnRows(sqlmock.NewRows([]string{"station"}))
	mock.ExpectExec("INSERT INTO hourly_precip").
		WillReturnError(fmt.Errorf("deadlock detected"))
	mock.ExpectRollback()

	// Second batch still goes through.
	second := []models.LongRecord{
		{Station: "Cheb", Amount: fl(1.0), Datetime: time.Date(2024, 3, 6, 0, 30, 0, 0, time.UTC)},
	}
	expectBatchInsert(mock, second)

	source := &sliceBatches{batches: [][]models.LongRecord{
		{{Station: "Brno", Amount: fl(2.0), Datetime: time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)}},
		second,
	}}

	err := repo.InsertPrecipitation(context.Background(), source)
	if err == nil {
		t.Fatal("InsertPrecipitation() = nil, want aggregated batch error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertPrecipitation_UnknownStation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TEMPORARY TABLE staging_precip").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "staging_precip"`)
	prep.ExpectExec().WithArgs("Neznámá", 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("LEFT JOIN stations").
		WillReturnRows(sqlmock.NewRows([]string{"station"}).AddRow("Neznámá"))
	mock.ExpectRollback()

	source := &sliceBatches{batches: [][]models.LongRecord{
		{{Station: "Neznámá", Amount: fl(1.0), Datetime: time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)}},
	}}

	err := repo.InsertPrecipitation(context.Background(), source)
	var unknownErr *models.UnknownStationError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("InsertPrecipitation() error = %v, want *models.UnknownStationError", err)
	}
	if unknownErr.Station != "Neznámá" {
		t.Errorf("error names station %q, want %q", unknownErr.Station, "Neznámá")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertPrecipitation_EmptyBatchesSkipStaging(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TEMPORARY TABLE staging_precip").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// All amounts nil: no transaction is opened at all.
	source := &sliceBatches{batches: [][]models.LongRecord{
		{{Station: "Brno", Amount: nil, Datetime: time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)}},
	}}

	if err := repo.InsertPrecipitation(context.Background(), source); err != nil {
		t.Fatalf("InsertPrecipitation() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertPrecipitation_SourceError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TEMPORARY TABLE staging_precip").
		WillReturnResult(sqlmock.NewResult(0, 0))

	source := &sliceBatches{err: fmt.Errorf("checkpoint unreadable")}
	if err := repo.InsertPrecipitation(context.Background(), source); err == nil {
		t.Fatal("InsertPrecipitation() = nil, want batch source error")
	}
}

func TestGetMeasuredDates(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`EXTRACT\(HOUR FROM datetime\) = 23`).
		WillReturnRows(sqlmock.NewRows([]string{"day"}).
			AddRow("2024-03-05").
			AddRow("2024-03-06"))

	dates, err := repo.GetMeasuredDates(context.Background())
	if err != nil {
		t.Fatalf("GetMeasuredDates() error = %v", err)
	}
	if len(dates) != 2 || dates[0] != "2024-03-05" || dates[1] != "2024-03-06" {
		t.Errorf("GetMeasuredDates() = %v, want [2024-03-05 2024-03-06]", dates)
	}
}

func TestGetDailyPrecipitation(t *testing.T) {
	repo, mock := newMockRepo(t)

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("JOIN stations s ON d.station_id = s.id").
		WillReturnRows(sqlmock.NewRows([]string{"station", "date", "amount"}).
			AddRow("Brno", day, 12.5))

	daily, err := repo.GetDailyPrecipitation(context.Background())
	if err != nil {
		t.Fatalf("GetDailyPrecipitation() error = %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("GetDailyPrecipitation() returned %d rows, want 1", len(daily))
	}
	if daily[0].Station != "Brno" || daily[0].Amount != 12.5 || !daily[0].Date.Equal(day) {
		t.Errorf("GetDailyPrecipitation()[0] = %+v", daily[0])
	}
}

func TestGetStationsData(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM stations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "elevation", "lat", "lon", "id_chmu", "type"}).
			AddRow(1, "Brno", 241.0, 49.19, 16.61, "B2BRNO01", "P"))

	stations, err := repo.GetStationsData(context.Background())
	if err != nil {
		t.Fatalf("GetStationsData() error = %v", err)
	}
	if len(stations) != 1 || stations[0].Name != "Brno" {
		t.Errorf("GetStationsData() = %+v", stations)
	}
}

func TestInsertStations(t *testing.T) {
	repo, mock := newMockRepo(t)

	stations := []models.Station{
		{Name: "Brno", Elevation: 241.0, Lat: 49.19, Lon: 16.61, IDChmu: "B2BRNO01", Type: "P"},
		{Name: "Cheb", Elevation: 471.8, Lat: 50.09, Lon: 12.39, IDChmu: "L1CHEB01", Type: "A"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO stations")
	for _, s := range stations {
		prep.ExpectExec().WithArgs(s.Name, s.Elevation, s.Lat, s.Lon, s.IDChmu, s.Type).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := repo.InsertStations(context.Background(), stations); err != nil {
		t.Fatalf("InsertStations() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertStations_Empty(t *testing.T) {
	repo, _ := newMockRepo(t)

	if err := repo.InsertStations(context.Background(), nil); err != nil {
		t.Fatalf("InsertStations(nil) error = %v", err)
	}
}
