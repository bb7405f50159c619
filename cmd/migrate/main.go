package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"river-postproc/internal/config"
	"river-postproc/migrations"
	"river-postproc/pkg/database"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

func main() {
	direction := flag.String("direction", migrations.Up, "Migration direction: up or down")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("river-migrate", "1.0.0", level)
	logger.SetOutput(os.Stderr)
	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace)

	// Connect to database
	db, err := database.NewArchiveDB(cfg.Database.ToDatabaseConfig(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s archive successfully\n", db.Driver())

	applied, err := migrations.Run(context.Background(), db, *direction)
	for _, name := range applied {
		fmt.Printf("Applied migration: %s\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		db.Close()
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Migration %s completed successfully (%d files)\n", *direction, len(applied))
	fmt.Println(strings.Repeat("=", 80))
}
