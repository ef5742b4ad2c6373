// The ingester binary runs the download / checkpoint / load pipeline once
// and exits. Intended to be run daily from a scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/danekpavel/precipitation/internal/config"
	"github.com/danekpavel/precipitation/internal/fetch"
	"github.com/danekpavel/precipitation/internal/filestore"
	"github.com/danekpavel/precipitation/internal/repository"
	"github.com/danekpavel/precipitation/internal/services"
	"github.com/danekpavel/precipitation/pkg/database"
	"github.com/danekpavel/precipitation/pkg/logging"
	"github.com/danekpavel/precipitation/pkg/metrics"
)

const (
	serviceName    = "precipitation-ingester"
	serviceVersion = "1.0.0"
)

func main() {
	var (
		download       = flag.Bool("download", false, "download and checkpoint new dates from the source")
		backfill       = flag.Bool("backfill", false, "load checkpointed dates missing from the database")
		dateList       = flag.String("dates", "", "comma-separated ISO dates to load from checkpoints")
		importStations = flag.Bool("import-stations", false, "import the station reference table into the database")
		maxRows        = flag.Int("max-rows", 0, "override the batch row ceiling")
	)
	flag.Parse()

	if !*download && !*backfill && *dateList == "" && !*importStations {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -download, -backfill, -dates or -import-stations")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *maxRows > 0 {
		cfg.Ingest.MaxBatchRows = *maxRows
	}

	logger := logging.NewStructuredLogger(serviceName, serviceVersion, logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		logger.Fatal(ctx, "[CONFIG_ERROR] Invalid configuration", nil, err)
	}

	metricsCollector := metrics.NewCollector("precipitation_ingester")
	clock := clockwork.NewRealClock()

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

	repo := repository.NewPrecipRepository(db, logger, metricsCollector)
	store := filestore.New(cfg.Ingest.DataDir)
	fetcher := fetch.New(cfg.Ingest.SourceURL, cfg.Ingest.FetchDelay, cfg.Ingest.MaxOffset,
		logger, metricsCollector, clock)

	ingestion := services.NewIngestionService(repo, store, fetcher, clock, logger, metricsCollector,
		cfg.Ingest.MinOffset, cfg.Ingest.MaxOffset, cfg.Ingest.MaxBatchRows)

	failed := false

	if *importStations {
		if err := ingestion.ImportStations(ctx, cfg.Ingest.StationsFile); err != nil {
			logger.Error(ctx, "[INGESTER_ERROR] Station import failed", nil, err)
			failed = true
		}
	}

	if *download {
		result, err := ingestion.DownloadNewData(ctx)
		if err != nil {
			logger.Error(ctx, "[INGESTER_ERROR] Download finished with errors", nil, err)
			failed = true
		}
		if result != nil {
			fmt.Printf("window:     %s .. %s\n", result.Window[0], result.Window[len(result.Window)-1])
			fmt.Printf("downloaded: %d %v\n", len(result.Downloaded), result.Downloaded)
			fmt.Printf("failed:     %d %v\n", len(result.Failed), result.Failed)
		}
	}

	if *dateList != "" {
		isoDates := strings.Split(*dateList, ",")
		for i := range isoDates {
			isoDates[i] = strings.TrimSpace(isoDates[i])
		}
		if err := ingestion.UpdateForDates(ctx, isoDates); err != nil {
			logger.Error(ctx, "[INGESTER_ERROR] Loading requested dates failed", nil, err)
			failed = true
		}
	}

	if *backfill {
		if err := ingestion.BackfillFromDisk(ctx); err != nil {
			logger.Error(ctx, "[INGESTER_ERROR] Backfill failed", nil, err)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
	logger.Info(ctx, "[INGESTER_DONE] Run complete", nil)
}
