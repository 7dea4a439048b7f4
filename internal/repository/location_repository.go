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

// LocationRepository persists resolved market coordinates
type LocationRepository interface {
	// GetLocation returns *NotFoundError when cityName has never been resolved.
	GetLocation(ctx context.Context, cityName string) (*models.LocationCoordinate, error)
	// InsertLocationIfAbsent never overwrites an existing row. It reports
	// whether this call created the row.
	InsertLocationIfAbsent(ctx context.Context, loc *models.LocationCoordinate) (bool, error)
}

type locationRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewLocationRepository creates a location_cache repository
func NewLocationRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) LocationRepository {
	return &locationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *locationRepository) GetLocation(ctx context.Context, cityName string) (*models.LocationCoordinate, error) {
	query := `
		SELECT city_name, lat, lon
		FROM location_cache
		WHERE city_name = $1
	`

	var loc models.LocationCoordinate
	err := r.db.GetContext(ctx, "get_location", &loc, query, cityName)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "location",
			ID:       cityName,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	return &loc, nil
}

func (r *locationRepository) InsertLocationIfAbsent(ctx context.Context, loc *models.LocationCoordinate) (bool, error) {
	query := `
		INSERT INTO location_cache (city_name, lat, lon)
		VALUES ($1, $2, $3)
		ON CONFLICT (city_name) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, "insert_location", query, loc.CityName, loc.Lat, loc.Lon)
	if err != nil {
		return false, fmt.Errorf("failed to insert location: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_INSERT_LOCATION] Location cache filled", logging.Fields{
		"city_name": loc.CityName,
		"created":   affected > 0,
	})

	return affected > 0, nil
}
