package services

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"agro-trader/internal/clients"
	"agro-trader/internal/models"
	"agro-trader/internal/repository"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

func testDeps(t *testing.T) (*logging.StructuredLogger, *metrics.Collector) {
	t.Helper()
	return logging.NewNop(), metrics.NewCollector("agro_test", prometheus.NewRegistry())
}

type memLocationRepo struct {
	mu      sync.Mutex
	rows    map[string]models.LocationCoordinate
	readErr error
	inserts int
}

func newMemLocationRepo() *memLocationRepo {
	return &memLocationRepo{rows: make(map[string]models.LocationCoordinate)}
}

func (r *memLocationRepo) GetLocation(_ context.Context, cityName string) (*models.LocationCoordinate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	loc, ok := r.rows[cityName]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "location", ID: cityName}
	}
	return &loc, nil
}

func (r *memLocationRepo) InsertLocationIfAbsent(_ context.Context, loc *models.LocationCoordinate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if _, ok := r.rows[loc.CityName]; ok {
		return false, nil
	}
	r.rows[loc.CityName] = *loc
	return true, nil
}

type routeKey struct{ origin, dest string }

type memRouteRepo struct {
	mu       sync.Mutex
	rows     map[routeKey]float64
	writeErr error
	writes   int
}

func newMemRouteRepo() *memRouteRepo {
	return &memRouteRepo{rows: make(map[routeKey]float64)}
}

func (r *memRouteRepo) GetRoute(_ context.Context, origin, destination string) (*models.RouteDistance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	km, ok := r.rows[routeKey{origin, destination}]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "route", ID: origin + "->" + destination}
	}
	return &models.RouteDistance{Origin: origin, Destination: destination, DistanceKm: km}, nil
}

func (r *memRouteRepo) InsertRouteBothDirections(_ context.Context, origin, destination string, km float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return r.writeErr
	}
	for _, k := range []routeKey{{origin, destination}, {destination, origin}} {
		if _, ok := r.rows[k]; !ok {
			r.rows[k] = km
		}
	}
	return nil
}

type countingGeocoder struct {
	mu      sync.Mutex
	places  map[string]models.Coordinate
	err     error
	calls   int
	queries []string
}

func (g *countingGeocoder) Geocode(_ context.Context, query string) (*models.Coordinate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.queries = append(g.queries, query)
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.places[query]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (g *countingGeocoder) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type countingRouter struct {
	mu     sync.Mutex
	result *clients.RouteResult
	err    error
	calls  int
}

func (r *countingRouter) Route(context.Context, float64, float64, float64, float64) (*clients.RouteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.result, r.err
}

func (r *countingRouter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stubPriceRepo struct {
	records  []*models.MarketPriceRecord
	err      error
	gotQuery string
	gotState []string
}

func (r *stubPriceRepo) FetchByCommodity(_ context.Context, q string, states []string) ([]*models.MarketPriceRecord, error) {
	r.gotQuery = q
	r.gotState = states
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*models.MarketPriceRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *stubPriceRepo) LatestSnapshot(context.Context) ([]*models.MarketPriceRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

func (r *stubPriceRepo) HealthCheck(context.Context) error {
	return r.err
}

func float64Ptr(v float64) *float64 {
	return &v
}
