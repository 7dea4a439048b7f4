package services

import (
	"context"

	"agro-trader/internal/models"
	"agro-trader/internal/repository"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// DefaultVolatilityThreshold is the minimum spread, in currency per quintal,
// worth alerting on
const DefaultVolatilityThreshold = 500.0

// VolatilityService finds the widest same-day price spread in the price store
type VolatilityService struct {
	repo      repository.PriceRepository
	threshold float64
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewVolatilityService creates a scanner; a non-positive threshold uses the default
func NewVolatilityService(repo repository.PriceRepository, threshold float64, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *VolatilityService {
	if threshold <= 0 {
		threshold = DefaultVolatilityThreshold
	}
	return &VolatilityService{
		repo:      repo,
		threshold: threshold,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// Scan returns the alert for the latest arrival date, or nil when nothing
// clears the threshold or the store could not be read.
func (s *VolatilityService) Scan(ctx context.Context) *models.VolatilityAlert {
	records, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		s.metrics.VolatilityScansTotal.WithLabelValues("error").Inc()
		s.logger.Error(ctx, "[VOLATILITY_SCAN_FAILED] Failed to load latest prices", nil, err)
		return nil
	}

	alert := FindWidestSpread(records, s.threshold)
	if alert == nil {
		s.metrics.VolatilityScansTotal.WithLabelValues("none").Inc()
		s.metrics.VolatilityPriceGap.Set(0)
		s.logger.Debug(ctx, "[VOLATILITY_SCAN] No spread above threshold", logging.Fields{
			"rows":      len(records),
			"threshold": s.threshold,
		})
		return nil
	}

	s.metrics.VolatilityScansTotal.WithLabelValues("alert").Inc()
	s.metrics.VolatilityPriceGap.Set(alert.PriceGap)
	s.logger.Info(ctx, "[VOLATILITY_ALERT] Price spread detected", logging.Fields{
		"state":     alert.State,
		"commodity": alert.Commodity,
		"min_price": alert.MinPrice,
		"max_price": alert.MaxPrice,
		"price_gap": alert.PriceGap,
	})
	return alert
}

type spreadKey struct {
	state     string
	commodity string
}

// FindWidestSpread groups records from their most recent arrival date by
// (state, commodity) and returns the group with the largest max-min gap
// strictly above threshold. Equal gaps go to the smallest (state, commodity).
func FindWidestSpread(records []*models.MarketPriceRecord, threshold float64) *models.VolatilityAlert {
	var latest *models.MarketPriceRecord
	for _, r := range records {
		if r != nil && (latest == nil || r.ArrivalDate.After(latest.ArrivalDate)) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	day := latest.ArrivalDate

	groups := make(map[spreadKey]*models.VolatilityAlert)
	for _, r := range records {
		if r == nil || !r.ArrivalDate.Equal(day) {
			continue
		}
		k := spreadKey{state: r.State, commodity: r.Commodity}
		g, ok := groups[k]
		if !ok {
			groups[k] = &models.VolatilityAlert{
				State:       r.State,
				Commodity:   r.Commodity,
				MinPrice:    r.ModalPrice,
				MaxPrice:    r.ModalPrice,
				ArrivalDate: day,
			}
			continue
		}
		if r.ModalPrice < g.MinPrice {
			g.MinPrice = r.ModalPrice
		}
		if r.ModalPrice > g.MaxPrice {
			g.MaxPrice = r.ModalPrice
		}
	}

	var best *models.VolatilityAlert
	for _, g := range groups {
		g.PriceGap = g.MaxPrice - g.MinPrice
		if g.PriceGap <= threshold {
			continue
		}
		if best == nil || g.PriceGap > best.PriceGap || (g.PriceGap == best.PriceGap && lessGroup(g, best)) {
			best = g
		}
	}
	return best
}

func lessGroup(a, b *models.VolatilityAlert) bool {
	if a.State != b.State {
		return a.State < b.State
	}
	return a.Commodity < b.Commodity
}
