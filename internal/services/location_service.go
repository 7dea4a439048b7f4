package services

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"agro-trader/internal/models"
	"agro-trader/internal/repository"
	"agro-trader/pkg/lock"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// Geocoder turns a free-text place query into a coordinate. A nil coordinate
// with a nil error means nothing matched.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.Coordinate, error)
}

// LocationConfig tunes LocationService
type LocationConfig struct {
	// CountryHint is appended to every geocoding query.
	CountryHint string
	// Timeout bounds a single geocoding call.
	Timeout time.Duration
}

// LocationService resolves market names to coordinates, filling
// location_cache on first use
type LocationService struct {
	repo       repository.LocationRepository
	geocoder   Geocoder
	normalizer *MarketNormalizer
	locker     lock.Locker
	cfg        LocationConfig
	group      singleflight.Group
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewLocationService creates a location resolver. locker may be nil.
func NewLocationService(
	repo repository.LocationRepository,
	geocoder Geocoder,
	normalizer *MarketNormalizer,
	locker lock.Locker,
	cfg LocationConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *LocationService {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &LocationService{
		repo:       repo,
		geocoder:   geocoder,
		normalizer: normalizer,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Key returns the cache key for marketName
func (s *LocationService) Key(marketName string) string {
	return s.normalizer.Normalize(marketName)
}

// Resolve returns the coordinate for marketName. The second result is false
// when neither the cache nor the geocoder produced one; no failure is
// remembered, so a later call may succeed.
func (s *LocationService) Resolve(ctx context.Context, marketName string) (models.Coordinate, bool) {
	key := s.Key(marketName)
	if key == "" {
		return models.Coordinate{}, false
	}

	if coord, ok := s.lookup(ctx, key); ok {
		return coord, true
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		return s.fill(ctx, key), nil
	})
	coord, _ := v.(*models.Coordinate)
	if coord == nil {
		return models.Coordinate{}, false
	}
	return *coord, true
}

func (s *LocationService) lookup(ctx context.Context, key string) (models.Coordinate, bool) {
	loc, err := s.repo.GetLocation(ctx, key)
	switch {
	case err == nil:
		s.metrics.RecordCacheLookup(cacheLocation, lookupHit)
		return loc.Coordinate(), true
	case repository.IsNotFound(err):
		s.metrics.RecordCacheLookup(cacheLocation, lookupMiss)
	default:
		s.metrics.RecordCacheLookup(cacheLocation, lookupError)
		s.logger.Warn(ctx, "[LOCATION_CACHE_ERROR] Cache read failed, treating as miss", logging.Fields{
			"city_name": key,
			"error":     err.Error(),
		})
	}
	return models.Coordinate{}, false
}

func (s *LocationService) fill(ctx context.Context, key string) *models.Coordinate {
	release, err := s.locker.Acquire(ctx, "location:"+key)
	if err != nil {
		s.logger.Warn(ctx, "[LOCATION_LOCK_FAILED] Filling without lock", logging.Fields{
			"city_name": key,
			"error":     err.Error(),
		})
	} else {
		defer release()
		// Another process may have filled the row while we waited.
		if loc, err := s.repo.GetLocation(ctx, key); err == nil {
			c := loc.Coordinate()
			return &c
		}
	}

	query := key
	if s.cfg.CountryHint != "" {
		query = key + ", " + s.cfg.CountryHint
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	timer := s.metrics.NewTimer(s.metrics.UpstreamCallDuration.WithLabelValues(providerGeocoder))
	coord, err := s.geocoder.Geocode(callCtx, query)
	duration := timer.ObserveDuration()

	if err != nil {
		s.metrics.RecordUpstreamError(providerGeocoder, upstreamErrorType(err))
		s.logger.Warn(ctx, "[GEOCODE_FAILED] Geocoding failed", logging.Fields{
			"city_name":   key,
			"query":       query,
			"duration_ms": duration.Milliseconds(),
			"error":       err.Error(),
		})
		return nil
	}
	if coord == nil {
		s.logger.Info(ctx, "[GEOCODE_NO_MATCH] Geocoder found nothing", logging.Fields{
			"city_name": key,
			"query":     query,
		})
		return nil
	}

	row := &models.LocationCoordinate{CityName: key, Lat: coord.Lat, Lon: coord.Lon}
	created, err := s.repo.InsertLocationIfAbsent(ctx, row)
	switch {
	case err != nil:
		s.metrics.RecordCacheWrite(cacheLocation, lookupError)
		s.logger.Error(ctx, "[LOCATION_CACHE_WRITE_FAILED] Failed to cache location", logging.Fields{
			"city_name": key,
		}, err)
	case created:
		s.metrics.RecordCacheWrite(cacheLocation, "created")
	default:
		s.metrics.RecordCacheWrite(cacheLocation, "exists")
		// Keep answers consistent with the row that won the race.
		if loc, err := s.repo.GetLocation(ctx, key); err == nil {
			c := loc.Coordinate()
			return &c
		}
	}

	s.logger.Info(ctx, "[GEOCODE_RESOLVED] Location resolved", logging.Fields{
		"city_name":   key,
		"lat":         coord.Lat,
		"lon":         coord.Lon,
		"duration_ms": duration.Milliseconds(),
	})
	return coord
}
