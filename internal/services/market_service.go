package services

import (
	"context"

	"agro-trader/internal/models"
	"agro-trader/internal/repository"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// MarketService serves current prices from trusted states only
type MarketService struct {
	repo    repository.PriceRepository
	trusted []string
	allowed map[string]struct{}
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewMarketService creates a market service restricted to trustedStates
func NewMarketService(repo repository.PriceRepository, trustedStates []string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MarketService {
	allowed := make(map[string]struct{}, len(trustedStates))
	for _, s := range trustedStates {
		allowed[s] = struct{}{}
	}
	return &MarketService{
		repo:    repo,
		trusted: append([]string(nil), trustedStates...),
		allowed: allowed,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// TrustedStates returns a copy of the allow-list
func (s *MarketService) TrustedStates() []string {
	return append([]string(nil), s.trusted...)
}

// FetchTrusted returns at most one record per market, the most recent, for
// commodities containing commodityQuery. Storage failures yield an empty
// result and are only logged.
func (s *MarketService) FetchTrusted(ctx context.Context, commodityQuery string) []models.MarketPriceRecord {
	records, err := s.repo.FetchByCommodity(ctx, commodityQuery, s.trusted)
	if err != nil {
		s.logger.Error(ctx, "[MARKET_FETCH_FAILED] Price lookup failed, returning no markets", logging.Fields{
			"commodity_query": commodityQuery,
		}, err)
		return []models.MarketPriceRecord{}
	}

	trusted := records[:0]
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, ok := s.allowed[r.State]; ok {
			trusted = append(trusted, r)
		}
	}

	out := DedupeByMarket(trusted)
	s.logger.Debug(ctx, "[MARKET_FETCH] Trusted prices loaded", logging.Fields{
		"commodity_query": commodityQuery,
		"rows":            len(records),
		"markets":         len(out),
	})
	return out
}

// DedupeByMarket keeps the first record seen for each market name. Callers
// pass records newest first.
func DedupeByMarket(records []*models.MarketPriceRecord) []models.MarketPriceRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.MarketPriceRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, dup := seen[r.Market]; dup {
			continue
		}
		seen[r.Market] = struct{}{}
		out = append(out, *r)
	}
	return out
}
