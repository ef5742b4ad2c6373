// The migrate binary applies the SQL migrations in the migrations directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/danekpavel/precipitation/internal/config"
	"github.com/danekpavel/precipitation/pkg/logging"
)

const (
	serviceName    = "precipitation-migrate"
	serviceVersion = "1.0.0"
)

func main() {
	var (
		direction = flag.String("direction", "up", "migration direction: up or down")
		dir       = flag.String("dir", "migrations", "directory containing migration files")
	)
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "invalid direction %q, expected up or down\n", *direction)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(serviceName, serviceVersion, logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Database, cfg.Database.SSLMode,
	)
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to open database", nil, err)
	}
	defer db.Close()

	files, err := migrationFiles(*dir, *direction)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to list migrations", nil, err)
	}
	if len(files) == 0 {
		logger.Info(ctx, "[MIGRATE_NOOP] No migration files found", logging.Fields{
			"dir":       *dir,
			"direction": *direction,
		})
		return
	}

	// Down migrations run in reverse order.
	if *direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to read migration", logging.Fields{
				"file": file,
			}, err)
		}

		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			logger.Fatal(ctx, "[MIGRATE_ERROR] Migration failed", logging.Fields{
				"file": file,
			}, err)
		}

		logger.Info(ctx, "[MIGRATE_APPLIED] Migration applied", logging.Fields{
			"file": file,
		})
	}
}

// migrationFiles returns the *.<direction>.sql files of dir, sorted by name.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	suffix := fmt.Sprintf(".%s.sql", direction)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
