package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"agro-trader/internal/models"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

var (
	// ErrNoMarketData means no trusted price rows matched the commodity
	ErrNoMarketData = errors.New("no trusted market data for commodity")
	// ErrBaseNotMapped means the base city could not be geocoded
	ErrBaseNotMapped = errors.New("base city could not be located")
)

// PriceSource supplies deduplicated trusted prices
type PriceSource interface {
	FetchTrusted(ctx context.Context, commodityQuery string) []models.MarketPriceRecord
}

// LocationResolver maps a market name to a coordinate
type LocationResolver interface {
	Resolve(ctx context.Context, marketName string) (models.Coordinate, bool)
}

// DistanceResolver maps a pair of markets to a driving distance in km
type DistanceResolver interface {
	Resolve(ctx context.Context, origin, dest models.Coordinate, originName, destName string) (float64, bool)
}

// OpportunityConfig holds search defaults
type OpportunityConfig struct {
	MaxDistanceKm float64
	MinProfit     float64
	RegionalFloor float64
}

// DefaultOpportunityConfig returns 400 km reach, 5000 minimum profit and a
// 3000 floor for regional deals
func DefaultOpportunityConfig() OpportunityConfig {
	return OpportunityConfig{MaxDistanceKm: 400, MinProfit: 5000, RegionalFloor: 3000}
}

// OpportunityQuery describes one route search from a base city. MinProfit is
// applied as-is, so callers fill in the configured default. MaxDistanceKm <= 0
// uses the configured reach.
type OpportunityQuery struct {
	BaseCity      string
	Commodity     string
	MinProfit     float64
	MaxDistanceKm float64
	Overrides     models.CostOverrides
}

// OpportunityResult is the ranked output of a route search. Opportunities
// are sorted by net profit, highest first. Markets is only set when the base
// city has no local price, and then lists every regional row.
type OpportunityResult struct {
	BaseCity      string                     `json:"base_city"`
	Commodity     string                     `json:"commodity"`
	LocalMarket   *models.MarketPriceRecord  `json:"local_market,omitempty"`
	Opportunities []models.Opportunity       `json:"opportunities"`
	Markets       []models.MarketPriceRecord `json:"markets,omitempty"`
	Skipped       int                        `json:"skipped"`
}

// OpportunityService ranks sell-to markets for a buyer at a base city
type OpportunityService struct {
	prices    PriceSource
	locations LocationResolver
	routes    DistanceResolver
	calc      *ProfitCalculator
	cfg       OpportunityConfig
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewOpportunityService wires the route search
func NewOpportunityService(
	prices PriceSource,
	locations LocationResolver,
	routes DistanceResolver,
	calc *ProfitCalculator,
	cfg OpportunityConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *OpportunityService {
	def := DefaultOpportunityConfig()
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = def.MaxDistanceKm
	}
	if cfg.RegionalFloor <= 0 {
		cfg.RegionalFloor = def.RegionalFloor
	}
	return &OpportunityService{
		prices:    prices,
		locations: locations,
		routes:    routes,
		calc:      calc,
		cfg:       cfg,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// Config returns the effective search defaults
func (s *OpportunityService) Config() OpportunityConfig {
	return s.cfg
}

// FindOpportunities buys at the base city's local market and prices a truck
// to every other trusted market within reach. Candidates that cannot be
// located or routed are skipped. It stops issuing lookups once ctx is done
// and returns what it has so far along with ctx.Err().
func (s *OpportunityService) FindOpportunities(ctx context.Context, q OpportunityQuery) (*OpportunityResult, error) {
	q.BaseCity = strings.TrimSpace(q.BaseCity)
	q.Commodity = strings.TrimSpace(q.Commodity)
	maxDistance := q.MaxDistanceKm
	if maxDistance <= 0 {
		maxDistance = s.cfg.MaxDistanceKm
	}

	markets := s.prices.FetchTrusted(ctx, q.Commodity)
	if len(markets) == 0 {
		return nil, ErrNoMarketData
	}

	baseCoord, ok := s.locations.Resolve(ctx, q.BaseCity)
	if !ok {
		return nil, ErrBaseNotMapped
	}

	result := &OpportunityResult{
		BaseCity:      q.BaseCity,
		Commodity:     q.Commodity,
		Opportunities: []models.Opportunity{},
	}

	local := findLocalMarket(markets, q.BaseCity)
	if local == nil {
		s.logger.Info(ctx, "[OPPORTUNITY_NO_LOCAL] No local price for base city, returning regional rows", logging.Fields{
			"base_city": q.BaseCity,
			"commodity": q.Commodity,
			"markets":   len(markets),
		})
		result.Markets = markets
		return result, nil
	}
	result.LocalMarket = local

	for i := range markets {
		m := markets[i]
		if m.Market == local.Market {
			continue
		}
		if err := ctx.Err(); err != nil {
			sortOpportunities(result.Opportunities)
			return result, err
		}

		opp, outcome := s.evaluate(ctx, baseCoord, q.BaseCity, m, local.ModalPrice, q.Commodity, maxDistance, q.Overrides)
		if outcome == candidateAccepted && opp.Financials.NetProfit < q.MinProfit {
			outcome = candidateUnprofitable
		}
		s.metrics.RecordRouteCandidate(outcome)
		switch outcome {
		case candidateAccepted:
			result.Opportunities = append(result.Opportunities, *opp)
		case candidateUnlocated, candidateUnrouted:
			result.Skipped++
		}
	}

	sortOpportunities(result.Opportunities)

	s.logger.Info(ctx, "[OPPORTUNITY_SEARCH] Route search complete", logging.Fields{
		"base_city":     q.BaseCity,
		"commodity":     q.Commodity,
		"candidates":    len(markets) - 1,
		"opportunities": len(result.Opportunities),
		"skipped":       result.Skipped,
	})
	return result, nil
}

// BestRegionalRoute scans every crop and hub pair with default costs and
// returns the single deal whose net profit beats floor and every other deal.
// floor <= 0 uses the configured regional floor. Returns nil when nothing
// beats the floor.
func (s *OpportunityService) BestRegionalRoute(ctx context.Context, hubs, crops []string, floor float64) *models.RegionalDeal {
	if floor <= 0 {
		floor = s.cfg.RegionalFloor
	}

	var best *models.RegionalDeal
	highest := floor

	for _, crop := range crops {
		markets := s.prices.FetchTrusted(ctx, crop)
		if len(markets) == 0 {
			continue
		}

		for _, hub := range hubs {
			if ctx.Err() != nil {
				return best
			}
			baseCoord, ok := s.locations.Resolve(ctx, hub)
			if !ok {
				continue
			}
			local := findLocalMarket(markets, hub)
			if local == nil {
				continue
			}

			for i := range markets {
				m := markets[i]
				if m.Market == local.Market {
					continue
				}
				if ctx.Err() != nil {
					return best
				}
				opp, outcome := s.evaluate(ctx, baseCoord, hub, m, local.ModalPrice, crop, s.cfg.MaxDistanceKm, models.CostOverrides{})
				if outcome != candidateAccepted || opp.Financials.NetProfit <= highest {
					continue
				}
				highest = opp.Financials.NetProfit
				best = &models.RegionalDeal{
					BaseCity:     hub,
					TargetMarket: m.Market,
					Crop:         crop,
					BuyPrice:     local.ModalPrice,
					SellPrice:    m.ModalPrice,
					DistanceKm:   opp.DistanceKm,
					Financials:   opp.Financials,
				}
			}
		}
	}

	if best != nil {
		s.logger.Info(ctx, "[REGIONAL_BEST] Best regional route found", logging.Fields{
			"base_city":     best.BaseCity,
			"target_market": best.TargetMarket,
			"crop":          best.Crop,
			"net_profit":    best.Financials.NetProfit,
		})
	}
	return best
}

const (
	candidateAccepted     = "accepted"
	candidateUnprofitable = "below_min_profit"
	candidateUnlocated    = "unlocated"
	candidateUnrouted     = "unrouted"
	candidateTooFar       = "too_far"
)

func (s *OpportunityService) evaluate(
	ctx context.Context,
	baseCoord models.Coordinate,
	baseName string,
	target models.MarketPriceRecord,
	buyPrice float64,
	commodity string,
	maxDistance float64,
	overrides models.CostOverrides,
) (*models.Opportunity, string) {
	targetCoord, ok := s.locations.Resolve(ctx, target.Market)
	if !ok {
		return nil, candidateUnlocated
	}

	distance, ok := s.routes.Resolve(ctx, baseCoord, targetCoord, baseName, target.Market)
	// A zero distance means the target is the base itself.
	if !ok || distance <= 0 {
		return nil, candidateUnrouted
	}
	if distance > maxDistance {
		return nil, candidateTooFar
	}

	return &models.Opportunity{
		Market:     target.Market,
		State:      target.State,
		DistanceKm: distance,
		BuyPrice:   buyPrice,
		SellPrice:  target.ModalPrice,
		Financials: s.calc.Compute(commodity, distance, buyPrice, target.ModalPrice, overrides),
	}, candidateAccepted
}

// findLocalMarket returns the first record whose market name contains city,
// ignoring case
func findLocalMarket(markets []models.MarketPriceRecord, city string) *models.MarketPriceRecord {
	needle := strings.ToLower(strings.TrimSpace(city))
	if needle == "" {
		return nil
	}
	for i := range markets {
		if strings.Contains(strings.ToLower(markets[i].Market), needle) {
			m := markets[i]
			return &m
		}
	}
	return nil
}

func sortOpportunities(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Financials.NetProfit > opps[j].Financials.NetProfit
	})
}
