package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"agro-trader/internal/models"
	"agro-trader/pkg/database"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// PriceRepository is a read-only view over mandi_prices, which is owned by
// the ingestion job
type PriceRepository interface {
	// FetchByCommodity returns rows whose commodity contains commodityQuery
	// (case-insensitive) from the given states, most recent first. Duplicate
	// markets are not removed here.
	FetchByCommodity(ctx context.Context, commodityQuery string, states []string) ([]*models.MarketPriceRecord, error)
	// LatestSnapshot returns every row at the most recent arrival date, or
	// an empty slice when the table is empty.
	LatestSnapshot(ctx context.Context) ([]*models.MarketPriceRecord, error)

	HealthCheck(ctx context.Context) error
}

type priceRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPriceRepository creates a mandi_prices repository
func NewPriceRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PriceRepository {
	return &priceRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *priceRepository) FetchByCommodity(ctx context.Context, commodityQuery string, states []string) ([]*models.MarketPriceRecord, error) {
	query := `
		SELECT state, market, commodity, modal_price, arrival_date
		FROM mandi_prices
		WHERE commodity ILIKE $1
		  AND state = ANY($2)
		ORDER BY arrival_date DESC
	`

	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(commodityQuery)) + "%"

	var records []*models.MarketPriceRecord
	err := r.db.SelectContext(ctx, "fetch_prices_by_commodity", &records, query, pattern, pq.Array(states))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_FETCH_PRICES] Price rows fetched", logging.Fields{
		"commodity_query": commodityQuery,
		"states":          len(states),
		"rows":            len(records),
	})

	return records, nil
}

func (r *priceRepository) LatestSnapshot(ctx context.Context) ([]*models.MarketPriceRecord, error) {
	query := `
		SELECT state, market, commodity, modal_price, arrival_date
		FROM mandi_prices
		WHERE arrival_date = (SELECT MAX(arrival_date) FROM mandi_prices)
		ORDER BY state, commodity, market
	`

	var records []*models.MarketPriceRecord
	if err := r.db.SelectContext(ctx, "latest_price_snapshot", &records, query); err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	return records, nil
}

func (r *priceRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
