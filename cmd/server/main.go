package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agro-trader/internal/app"
	"agro-trader/internal/config"
	"agro-trader/internal/handlers"
	"agro-trader/internal/scheduler"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

func main() {
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

	logger := app.NewLogger(cfg.Logging, "agro-api")
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[STARTUP] Starting agro trader API server", logging.Fields{
		"version":        app.Version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"db_host":        cfg.Database.Host,
		"db_name":        cfg.Database.Database,
		"trusted_states": cfg.Market.TrustedStates,
	})

	metricsCollector := metrics.NewCollector("agro_trader", prometheus.DefaultRegisterer)

	a, err := app.Build(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialise services", logging.Fields{}, err)
	}
	defer a.Close()

	// Scheduled scans feed /api/volatility and /api/regions
	board := scheduler.NewBoard()
	runner := scheduler.New(ctx, logger)

	if cfg.Volatility.Enabled {
		if _, err := runner.Add("volatility_scan", cfg.Volatility.Schedule, scheduler.VolatilityJob(a.Volatility, board, logger)); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Invalid volatility schedule", logging.Fields{
				"schedule": cfg.Volatility.Schedule,
			}, err)
		}
	}
	if len(cfg.Market.Regions) > 0 {
		regions := make([]scheduler.Region, 0, len(cfg.Market.Regions))
		for _, r := range cfg.Market.Regions {
			regions = append(regions, scheduler.Region{Name: r.Name, Hubs: r.Hubs, Crops: r.Crops})
		}
		job := scheduler.RegionalJob(a.Opportunity, regions, cfg.Market.RegionalFloor, board, logger)
		if _, err := runner.Add("regional_scan", cfg.Market.RegionsSchedule, job); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Invalid regions schedule", logging.Fields{
				"schedule": cfg.Market.RegionsSchedule,
			}, err)
		}
	}
	runner.Start()

	tradeHandler := handlers.NewTradeHandler(handlers.TradeDeps{
		Opportunities: a.Opportunity,
		Markets:       a.Markets,
		Locations:     a.Locations,
		Routes:        a.Routes,
		Calculator:    a.Calculator,
		Volatility:    a.Volatility,
		Board:         board,
		Health:        a.DB,
		MinProfit:     cfg.Market.MinProfit,
	}, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(handlers.RequestMiddleware(logger, metricsCollector))
	tradeHandler.RegisterRoutes(router)

	router.HandleFunc("/api/docs", handlers.SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}
	runner.Stop()

	logger.Info(shutdownCtx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
