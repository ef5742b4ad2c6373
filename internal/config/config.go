// Package config loads service configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for the server and the ingester.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// IngestConfig holds settings of the ingestion pipeline.
type IngestConfig struct {
	// DataDir is where one-day CSV checkpoints are written.
	DataDir string
	// StationsFile is the station reference CSV (canonical names, mapping
	// from scraped names, coordinates).
	StationsFile string
	// SourceURL is the precipitation page of the hydrology portal.
	SourceURL string
	// FetchDelay is the pause between page requests of one day.
	FetchDelay time.Duration
	// MaxBatchRows bounds the number of long-format rows per insert batch.
	MaxBatchRows int
	// MinOffset and MaxOffset bound the day-offset window accepted by the
	// source (0 = today, 7 = oldest retained day).
	MinOffset int
	MaxOffset int
	// RefreshInterval is how often the read service re-checks the store
	// for newly ingested dates.
	RefreshInterval time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string
}

// LoadConfig reads configuration from the environment, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         envOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         envInt("SERVER_PORT", 8080),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  envDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            envOrDefault("DB_HOST", "localhost"),
			Port:            envInt("DB_PORT", 5432),
			User:            envOrDefault("DB_USER", "precipitation"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        envOrDefault("DB_DATABASE", "precipitation"),
			SSLMode:         envOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: envDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Ingest: IngestConfig{
			DataDir:         envOrDefault("DATA_DIR", "data/daily"),
			StationsFile:    envOrDefault("STATIONS_FILE", "data/stations_data.csv"),
			SourceURL:       envOrDefault("SOURCE_URL", "https://hydro.chmi.cz/hppsoldv/hpps_act_rain.php"),
			FetchDelay:      envDuration("FETCH_DELAY", 500*time.Millisecond),
			MaxBatchRows:    envInt("MAX_BATCH_ROWS", 60000),
			MinOffset:       envInt("MIN_OFFSET", 1),
			MaxOffset:       envInt("MAX_OFFSET", 7),
			RefreshInterval: envDuration("REFRESH_INTERVAL", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level: envOrDefault("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Ingest.MaxBatchRows <= 0 {
		return fmt.Errorf("MAX_BATCH_ROWS must be positive, got %d", c.Ingest.MaxBatchRows)
	}
	if c.Ingest.SourceURL == "" {
		return fmt.Errorf("SOURCE_URL is required")
	}
	if c.Ingest.MinOffset < 0 || c.Ingest.MaxOffset < c.Ingest.MinOffset {
		return fmt.Errorf("invalid offset window [%d, %d]", c.Ingest.MinOffset, c.Ingest.MaxOffset)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}
