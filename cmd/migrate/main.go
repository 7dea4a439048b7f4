package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"agro-trader/internal/app"
	"agro-trader/internal/config"
	"agro-trader/pkg/database"
	"agro-trader/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Logging, "agro-migrate")
	defer logger.Close()

	db, err := database.NewPostgresDB(app.DatabaseConfig(cfg.Database), logger, metrics.NewCollector("agro_migrate", prometheus.NewRegistry()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")
	fmt.Printf("Running migration: %s\n", *direction)

	if err := db.Migrate(context.Background(), *direction); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
