package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agro-trader/internal/clients"
	"agro-trader/internal/config"
	"agro-trader/internal/repository"
	"agro-trader/internal/services"
	"agro-trader/pkg/database"
	"agro-trader/pkg/lock"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// Version is reported in logs by every binary
const Version = "1.0.0"

// App is the wired service graph shared by the server and the CLI tools
type App struct {
	DB          *database.PostgresDB
	Redis       *redis.Client
	Prices      repository.PriceRepository
	Markets     *services.MarketService
	Locations   *services.LocationService
	Routes      *services.RouteService
	Calculator  *services.ProfitCalculator
	Opportunity *services.OpportunityService
	Volatility  *services.VolatilityService
}

// NewLogger builds the logger for service from the logging section
func NewLogger(cfg config.LoggingConfig, service string) *logging.StructuredLogger {
	return logging.New(logging.Config{
		Service:    service,
		Version:    Version,
		Level:      logging.ParseLevel(cfg.Level),
		FilePath:   cfg.FilePath,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

// DatabaseConfig maps the database section onto the pool settings
func DatabaseConfig(cfg config.DatabaseConfig) *database.Config {
	return &database.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

// Build connects to storage and wires every service. Close releases what
// Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*App, error) {
	db, err := database.NewPostgresDB(DatabaseConfig(cfg.Database), logger, metricsCollector)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, "up"); err != nil {
			a.Close()
			return nil, err
		}
	}

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.Enabled {
		rc, err := lock.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis lock backend: %w", err)
		}
		a.Redis = rc
		locker = lock.NewRedisLocker(rc, lock.RedisOptions{
			Prefix: "agro:",
			TTL:    cfg.Redis.LockTTL,
			Wait:   cfg.Redis.LockWait,
		})
		logger.Info(ctx, "[STARTUP] Cache fills coordinated through redis", logging.Fields{
			"redis_db": cfg.Redis.DB,
		})
	}

	normalizer := services.NewMarketNormalizer(cfg.Market.NoiseTokens)

	geocoder := clients.NewNominatimClient(clients.NominatimConfig{
		BaseURL:      cfg.Geocoding.BaseURL,
		UserAgent:    cfg.Geocoding.UserAgent,
		CountryCodes: cfg.Geocoding.CountryCodes,
		Timeout:      cfg.Geocoding.Timeout,
		RatePerSec:   cfg.Geocoding.RatePerSec,
		Burst:        cfg.Geocoding.Burst,
	}, nil)
	router := clients.NewOSRMClient(clients.OSRMConfig{
		BaseURL: cfg.Routing.BaseURL,
		Profile: cfg.Routing.Profile,
		Timeout: cfg.Routing.Timeout,
	}, nil)

	a.Prices = repository.NewPriceRepository(db, logger, metricsCollector)
	locationRepo := repository.NewLocationRepository(db, logger, metricsCollector)
	routeRepo := repository.NewRouteRepository(db, logger, metricsCollector)

	a.Markets = services.NewMarketService(a.Prices, cfg.Market.TrustedStates, logger, metricsCollector)
	a.Locations = services.NewLocationService(locationRepo, geocoder, normalizer, locker, services.LocationConfig{
		CountryHint: cfg.Geocoding.CountryHint,
		Timeout:     cfg.Geocoding.Timeout,
	}, logger, metricsCollector)
	a.Routes = services.NewRouteService(routeRepo, router, normalizer, locker, services.RouteConfig{
		Timeout: cfg.Routing.Timeout,
	}, logger, metricsCollector)
	a.Calculator = services.NewProfitCalculator(services.DefaultCropRegistry(), services.CostDefaults{
		FreightRate: cfg.Costs.FreightRate,
		TaxRate:     cfg.Costs.TaxRate,
	})
	a.Opportunity = services.NewOpportunityService(a.Markets, a.Locations, a.Routes, a.Calculator, services.OpportunityConfig{
		MaxDistanceKm: cfg.Market.MaxDistanceKm,
		MinProfit:     cfg.Market.MinProfit,
		RegionalFloor: cfg.Market.RegionalFloor,
	}, logger, metricsCollector)
	a.Volatility = services.NewVolatilityService(a.Prices, cfg.Volatility.Threshold, logger, metricsCollector)

	return a, nil
}

// Close releases the database pool and the redis client
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
