package scheduler

import (
	"context"
	"sync"
	"time"

	"agro-trader/internal/models"
	"agro-trader/pkg/logging"
)

// VolatilityScanner is satisfied by services.VolatilityService
type VolatilityScanner interface {
	Scan(ctx context.Context) *models.VolatilityAlert
}

// RegionalFinder is satisfied by services.OpportunityService
type RegionalFinder interface {
	BestRegionalRoute(ctx context.Context, hubs, crops []string, floor float64) *models.RegionalDeal
}

// Region is one named hub/crop set
type Region struct {
	Name  string
	Hubs  []string
	Crops []string
}

// Board holds the results of the most recent scheduled scans
type Board struct {
	mu           sync.RWMutex
	volatility   *models.VolatilityAlert
	volatilityAt time.Time
	regional     map[string]*models.RegionalDeal
	regionalAt   time.Time
}

// NewBoard returns an empty board
func NewBoard() *Board {
	return &Board{regional: make(map[string]*models.RegionalDeal)}
}

// Volatility returns the last alert (nil when the last scan found none) and
// when it was computed. The zero time means no scan has run yet.
func (b *Board) Volatility() (*models.VolatilityAlert, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.volatility, b.volatilityAt
}

// SetVolatility records a scan result
func (b *Board) SetVolatility(alert *models.VolatilityAlert, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volatility = alert
	b.volatilityAt = at
}

// Regional returns a copy of the last deal per region. Regions with no deal
// above the floor map to nil.
func (b *Board) Regional() (map[string]*models.RegionalDeal, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*models.RegionalDeal, len(b.regional))
	for k, v := range b.regional {
		out[k] = v
	}
	return out, b.regionalAt
}

// SetRegional replaces every regional result
func (b *Board) SetRegional(deals map[string]*models.RegionalDeal, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regional = deals
	b.regionalAt = at
}

// VolatilityJob scans and records the result on board
func VolatilityJob(scanner VolatilityScanner, board *Board, logger *logging.StructuredLogger) func(context.Context) {
	return func(ctx context.Context) {
		alert := scanner.Scan(ctx)
		board.SetVolatility(alert, time.Now().UTC())
		if alert == nil {
			logger.Info(ctx, "[VOLATILITY_JOB] Markets are stable", nil)
		}
	}
}

// RegionalJob finds the best route for each region and records them on board
func RegionalJob(finder RegionalFinder, regions []Region, floor float64, board *Board, logger *logging.StructuredLogger) func(context.Context) {
	return func(ctx context.Context) {
		deals := make(map[string]*models.RegionalDeal, len(regions))
		for _, r := range regions {
			if ctx.Err() != nil {
				return
			}
			deal := finder.BestRegionalRoute(ctx, r.Hubs, r.Crops, floor)
			deals[r.Name] = deal
			if deal == nil {
				logger.Info(ctx, "[REGIONAL_JOB] No high-profit route", logging.Fields{"region": r.Name})
			}
		}
		board.SetRegional(deals, time.Now().UTC())
	}
}
