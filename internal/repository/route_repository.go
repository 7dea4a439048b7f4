package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agro-trader/internal/models"
	"agro-trader/pkg/database"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// RouteRepository persists resolved driving distances
type RouteRepository interface {
	// GetRoute returns *NotFoundError when the ordered pair is not cached.
	GetRoute(ctx context.Context, origin, destination string) (*models.RouteDistance, error)
	// InsertRouteBothDirections writes (origin, destination) and
	// (destination, origin) in one transaction, keeping any existing rows.
	InsertRouteBothDirections(ctx context.Context, origin, destination string, distanceKm float64) error
}

type routeRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRouteRepository creates a route_cache repository
func NewRouteRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RouteRepository {
	return &routeRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *routeRepository) GetRoute(ctx context.Context, origin, destination string) (*models.RouteDistance, error) {
	query := `
		SELECT origin, destination, distance_km
		FROM route_cache
		WHERE origin = $1 AND destination = $2
	`

	var route models.RouteDistance
	err := r.db.GetContext(ctx, "get_route", &route, query, origin, destination)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "route",
			ID:       fmt.Sprintf("%s->%s", origin, destination),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}

	return &route, nil
}

func (r *routeRepository) InsertRouteBothDirections(ctx context.Context, origin, destination string, distanceKm float64) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO route_cache (origin, destination, distance_km)
		VALUES ($1, $2, $3)
		ON CONFLICT (origin, destination) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, pair := range [][2]string{{origin, destination}, {destination, origin}} {
		if _, err := stmt.ExecContext(ctx, pair[0], pair[1], distanceKm); err != nil {
			r.metrics.RecordDBError("exec_error")
			return fmt.Errorf("failed to insert route %s->%s: %w", pair[0], pair[1], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_INSERT_ROUTE] Route cache filled in both directions", logging.Fields{
		"origin":      origin,
		"destination": destination,
		"distance_km": distanceKm,
	})

	return nil
}
