package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/internal/services"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

var testMetrics = metrics.NewCollector("handlers_test")

// stubService serves canned read API data.
type stubService struct {
	stations  []models.StationInfo
	daily     []models.DailyPrecipitation
	healthy   bool
	gotFilter services.DailyFilter
}

func (s *stubService) GetStationsData(ctx context.Context) ([]models.StationInfo, error) {
	return s.stations, nil
}

func (s *stubService) GetDailyPrecipitation(ctx context.Context, filter services.DailyFilter) ([]models.DailyPrecipitation, error) {
	s.gotFilter = filter
	return s.daily, nil
}

func (s *stubService) HealthCheck(ctx context.Context) error {
	if !s.healthy {
		return fmt.Errorf("database unreachable")
	}
	return nil
}

func newTestRouter(service *stubService) *mux.Router {
	logger := logging.NewStructuredLogger("test", "test", logging.FatalLevel)
	logger.SetOutput(io.Discard)

	router := mux.NewRouter()
	NewPrecipHandlers(service, logger, testMetrics).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetStations(t *testing.T) {
	service := &stubService{stations: []models.StationInfo{
		{Name: "Brno - Žabovřesky", Elevation: 241, Lat: 49.19, Lon: 16.61, IDChmu: "B2BRNO01", Type: "P"},
	}}
	router := newTestRouter(service)

	rec := doRequest(t, router, "/api/stations")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/stations status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []models.StationInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Brno - Žabovřesky" || got[0].Elevation != 241 {
		t.Errorf("GET /api/stations = %+v", got)
	}
}

func TestGetDailyPrecipitation(t *testing.T) {
	service := &stubService{daily: []models.DailyPrecipitation{
		{Station: "Brno - Žabovřesky", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Amount: 12.5},
	}}
	router := newTestRouter(service)

	rec := doRequest(t, router, "/api/precipitation/daily?station=Brno&start_date=2024-03-01&end_date=2024-03-07")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if service.gotFilter.Station == nil || *service.gotFilter.Station != "Brno" {
		t.Errorf("filter Station = %v, want Brno", service.gotFilter.Station)
	}
	if service.gotFilter.StartDate == nil || !service.gotFilter.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("filter StartDate = %v, want 2024-03-01", service.gotFilter.StartDate)
	}
	if service.gotFilter.EndDate == nil || !service.gotFilter.EndDate.Equal(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("filter EndDate = %v, want 2024-03-07", service.gotFilter.EndDate)
	}

	var got []models.DailyPrecipitation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Amount != 12.5 {
		t.Errorf("GET /api/precipitation/daily = %+v", got)
	}
}

func TestGetDailyPrecipitation_NoFilter(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(service)

	rec := doRequest(t, router, "/api/precipitation/daily")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if service.gotFilter.Station != nil || service.gotFilter.StartDate != nil || service.gotFilter.EndDate != nil {
		t.Errorf("filter = %+v, want all nil", service.gotFilter)
	}
}

func TestGetDailyPrecipitation_BadRequest(t *testing.T) {
	router := newTestRouter(&stubService{})

	tests := []struct {
		name string
		url  string
	}{
		{"invalid start_date", "/api/precipitation/daily?start_date=yesterday"},
		{"invalid end_date", "/api/precipitation/daily?end_date=2024-3"},
		{"end before start", "/api/precipitation/daily?start_date=2024-03-07&end_date=2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, tt.url)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		healthy  bool
		wantCode int
	}{
		{"healthy", true, http.StatusOK},
		{"unhealthy", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubService{healthy: tt.healthy})
			rec := doRequest(t, router, "/health")
			if rec.Code != tt.wantCode {
				t.Errorf("GET /health status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestOpenAPISpec_ValidJSON(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, "/openapi.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /openapi.json status = %d, want %d", rec.Code, http.StatusOK)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("OpenAPI document is not valid JSON: %v", err)
	}
	if _, ok := doc["paths"]; !ok {
		t.Error("OpenAPI document has no paths section")
	}
}
