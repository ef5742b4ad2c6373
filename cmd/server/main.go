// The server binary serves the dashboard read API: station metadata, daily
// precipitation sums, health and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danekpavel/precipitation/internal/config"
	"github.com/danekpavel/precipitation/internal/handlers"
	"github.com/danekpavel/precipitation/internal/repository"
	"github.com/danekpavel/precipitation/internal/services"
	"github.com/danekpavel/precipitation/internal/translate"
	"github.com/danekpavel/precipitation/pkg/database"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

const (
	serviceName    = "precipitation-server"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(serviceName, serviceVersion, logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		logger.Fatal(ctx, "[CONFIG_ERROR] Invalid configuration", nil, err)
	}

	metricsCollector := metrics.NewCollector("precipitation")

	db, err := database.NewPostgresDB(&database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[DB_ERROR] Failed to connect to database", nil, err)
	}
	defer db.Close()

	translator, err := translate.LoadTranslator(cfg.Ingest.StationsFile)
	if err != nil {
		logger.Fatal(ctx, "[TRANSLATOR_ERROR] Failed to load station reference", logging.Fields{
			"file": cfg.Ingest.StationsFile,
		}, err)
	}

	repo := repository.NewPrecipRepository(db, logger, metricsCollector)
	precipService := services.NewPrecipService(repo, translator, clockwork.NewRealClock(), logger, cfg.Ingest.RefreshInterval)
	precipHandlers := handlers.NewPrecipHandlers(precipService, logger, metricsCollector)

	router := mux.NewRouter()
	precipHandlers.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] HTTP server failed", nil, err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SERVER_SHUTDOWN] Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SERVER_SHUTDOWN_ERROR] Graceful shutdown failed", nil, err)
	}

	logger.Info(ctx, "[SERVER_STOPPED] Server stopped", nil)
}
