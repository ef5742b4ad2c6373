// Package handlers implements the HTTP read API of the dashboard: station
// metadata and daily precipitation sums.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/danekpavel/precipitation/internal/dates"
	"github.com/danekpavel/precipitation/internal/models"
	"github.com/danekpavel/precipitation/internal/services"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

// PrecipAPI is the read service surface the handlers depend on.
// *services.PrecipService satisfies this.
type PrecipAPI interface {
	GetStationsData(ctx context.Context) ([]models.StationInfo, error)
	GetDailyPrecipitation(ctx context.Context, filter services.DailyFilter) ([]models.DailyPrecipitation, error)
	HealthCheck(ctx context.Context) error
}

// PrecipHandlers serves the dashboard read API.
type PrecipHandlers struct {
	service PrecipAPI
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPrecipHandlers creates new HTTP handlers for the read API.
func NewPrecipHandlers(service PrecipAPI, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PrecipHandlers {
	return &PrecipHandlers{
		service: service,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RegisterRoutes wires the API routes into the router.
func (h *PrecipHandlers) RegisterRoutes(router *mux.Router) {
	router.Use(h.requestMiddleware)

	router.HandleFunc("/api/stations", h.GetStations).Methods(http.MethodGet)
	router.HandleFunc("/api/precipitation/daily", h.GetDailyPrecipitation).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/openapi.json", h.OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/docs", h.SwaggerUI).Methods(http.MethodGet)
}

// GetStations handles GET /api/stations.
func (h *PrecipHandlers) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.service.GetStationsData(r.Context())
	if err != nil {
		h.metrics.RecordAPIError("internal_error", "/api/stations")
		h.logger.Error(r.Context(), "[API_STATIONS] Failed to get stations", nil, err)
		h.sendError(w, http.StatusInternalServerError, "failed to get stations")
		return
	}

	h.sendJSON(w, http.StatusOK, stations)
}

// GetDailyPrecipitation handles GET /api/precipitation/daily. Optional query
// parameters: station (exact canonical name), start_date and end_date
// (inclusive, YYYY-MM-DD).
func (h *PrecipHandlers) GetDailyPrecipitation(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDailyFilter(r)
	if err != nil {
		h.metrics.RecordAPIError("bad_request", "/api/precipitation/daily")
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	daily, err := h.service.GetDailyPrecipitation(r.Context(), filter)
	if err != nil {
		h.metrics.RecordAPIError("internal_error", "/api/precipitation/daily")
		h.logger.Error(r.Context(), "[API_DAILY] Failed to get daily precipitation", nil, err)
		h.sendError(w, http.StatusInternalServerError, "failed to get daily precipitation")
		return
	}

	h.sendJSON(w, http.StatusOK, daily)
}

// Health handles GET /health.
func (h *PrecipHandlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.service.HealthCheck(r.Context()); err != nil {
		h.logger.Error(r.Context(), "[API_HEALTH] Health check failed", nil, err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// parseDailyFilter builds the service filter from query parameters.
func parseDailyFilter(r *http.Request) (services.DailyFilter, error) {
	var filter services.DailyFilter
	q := r.URL.Query()

	if station := q.Get("station"); station != "" {
		filter.Station = &station
	}
	if s := q.Get("start_date"); s != "" {
		t, err := dates.Parse(s)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date %q, expected YYYY-MM-DD", s)
		}
		filter.StartDate = &t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := dates.Parse(s)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date %q, expected YYYY-MM-DD", s)
		}
		filter.EndDate = &t
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return filter, fmt.Errorf("end_date precedes start_date")
	}
	return filter, nil
}

// requestMiddleware attaches a request ID and records request metrics.
func (h *PrecipHandlers) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), uuid.New().String())

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		h.metrics.RecordAPIRequest(endpoint, r.Method, fmt.Sprintf("%d", rw.status))
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		h.logger.Info(ctx, "[API_REQUEST] Request handled", logging.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

// responseWriter captures the response status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// sendJSON writes a JSON response.
func (h *PrecipHandlers) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error(context.Background(), "[API_ENCODE] Failed to encode response", nil, err)
	}
}

// sendError writes a JSON error response.
func (h *PrecipHandlers) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, map[string]string{"error": message})
}
