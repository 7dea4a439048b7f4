package services

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"agro-trader/internal/clients"
	"agro-trader/internal/models"
	"agro-trader/internal/repository"
	"agro-trader/pkg/lock"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// Router returns the road route between two points. A result whose Code is
// not clients.OSRMCodeOK carries no distance.
type Router interface {
	Route(ctx context.Context, originLon, originLat, destLon, destLat float64) (*clients.RouteResult, error)
}

// RouteConfig tunes RouteService
type RouteConfig struct {
	// Timeout bounds a single routing call.
	Timeout time.Duration
}

// RouteService resolves driving distances between markets, filling
// route_cache in both directions on first use
type RouteService struct {
	repo       repository.RouteRepository
	router     Router
	normalizer *MarketNormalizer
	locker     lock.Locker
	cfg        RouteConfig
	group      singleflight.Group
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewRouteService creates a route resolver. locker may be nil.
func NewRouteService(
	repo repository.RouteRepository,
	router Router,
	normalizer *MarketNormalizer,
	locker lock.Locker,
	cfg RouteConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RouteService {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RouteService{
		repo:       repo,
		router:     router,
		normalizer: normalizer,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Resolve returns the driving distance in km from origin to dest. The names
// key the cache; the coordinates are only used on a miss.
func (s *RouteService) Resolve(ctx context.Context, origin, dest models.Coordinate, originName, destName string) (float64, bool) {
	o := s.normalizer.Normalize(originName)
	d := s.normalizer.Normalize(destName)
	if o == "" || d == "" {
		return 0, false
	}

	if km, ok := s.lookup(ctx, o, d); ok {
		return km, true
	}

	// A->B and B->A share one fill since both rows get written.
	pair := pairKey(o, d)
	v, _, _ := s.group.Do(pair, func() (interface{}, error) {
		return s.fill(ctx, origin, dest, o, d, pair), nil
	})
	km, ok := v.(float64)
	return km, ok
}

func (s *RouteService) lookup(ctx context.Context, origin, dest string) (float64, bool) {
	route, err := s.repo.GetRoute(ctx, origin, dest)
	switch {
	case err == nil:
		s.metrics.RecordCacheLookup(cacheRoute, lookupHit)
		return route.DistanceKm, true
	case repository.IsNotFound(err):
		s.metrics.RecordCacheLookup(cacheRoute, lookupMiss)
	default:
		s.metrics.RecordCacheLookup(cacheRoute, lookupError)
		s.logger.Warn(ctx, "[ROUTE_CACHE_ERROR] Cache read failed, treating as miss", logging.Fields{
			"origin":      origin,
			"destination": dest,
			"error":       err.Error(),
		})
	}
	return 0, false
}

// fill returns nil when no distance could be obtained
func (s *RouteService) fill(ctx context.Context, origin, dest models.Coordinate, o, d, pair string) interface{} {
	release, err := s.locker.Acquire(ctx, "route:"+pair)
	if err != nil {
		s.logger.Warn(ctx, "[ROUTE_LOCK_FAILED] Filling without lock", logging.Fields{
			"origin":      o,
			"destination": d,
			"error":       err.Error(),
		})
	} else {
		defer release()
		if route, err := s.repo.GetRoute(ctx, o, d); err == nil {
			return route.DistanceKm
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	timer := s.metrics.NewTimer(s.metrics.UpstreamCallDuration.WithLabelValues(providerRouter))
	res, err := s.router.Route(callCtx, origin.Lon, origin.Lat, dest.Lon, dest.Lat)
	duration := timer.ObserveDuration()

	fields := logging.Fields{
		"origin":      o,
		"destination": d,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		s.metrics.RecordUpstreamError(providerRouter, upstreamErrorType(err))
		fields["error"] = err.Error()
		s.logger.Warn(ctx, "[ROUTE_FAILED] Routing failed", fields)
		return nil
	}
	if res == nil || res.Code != clients.OSRMCodeOK {
		s.metrics.RecordUpstreamError(providerRouter, "no_route")
		if res != nil {
			fields["code"] = res.Code
			fields["message"] = res.Message
		}
		s.logger.Info(ctx, "[ROUTE_NOT_FOUND] Router returned no route", fields)
		return nil
	}
	if res.DistanceMeters < 0 || math.IsNaN(res.DistanceMeters) || math.IsInf(res.DistanceMeters, 0) {
		s.metrics.RecordUpstreamError(providerRouter, "malformed")
		fields["distance_m"] = res.DistanceMeters
		s.logger.Warn(ctx, "[ROUTE_MALFORMED] Router returned an unusable distance", fields)
		return nil
	}

	km := res.DistanceMeters / 1000
	if err := s.repo.InsertRouteBothDirections(ctx, o, d, km); err != nil {
		s.metrics.RecordCacheWrite(cacheRoute, lookupError)
		s.logger.Error(ctx, "[ROUTE_CACHE_WRITE_FAILED] Failed to cache route", fields, err)
	} else {
		s.metrics.RecordCacheWrite(cacheRoute, "created")
	}

	fields["distance_km"] = km
	s.logger.Info(ctx, "[ROUTE_RESOLVED] Route resolved", fields)
	return km
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
