package services

import "agro-trader/internal/models"

// TruckCapacityQtl is the load every route is priced for
const TruckCapacityQtl = 100.0

// CostDefaults are the rates used when a CostOverrides field is nil.
// Labor always defaults to the crop profile.
type CostDefaults struct {
	FreightRate float64 // currency per km
	TaxRate     float64 // fraction of buy value plus sell value
}

// DefaultCostDefaults returns 35/km freight and 3% mandi tax
func DefaultCostDefaults() CostDefaults {
	return CostDefaults{FreightRate: 35, TaxRate: 0.03}
}

// ProfitCalculator prices one truck load between two markets. It holds no
// mutable state and is safe for concurrent use.
type ProfitCalculator struct {
	crops    *CropRegistry
	defaults CostDefaults
}

// NewProfitCalculator creates a calculator over crops
func NewProfitCalculator(crops *CropRegistry, defaults CostDefaults) *ProfitCalculator {
	return &ProfitCalculator{crops: crops, defaults: defaults}
}

// Profile returns the crop profile Compute uses for commodity
func (c *ProfitCalculator) Profile(commodity string) models.CropProfile {
	return c.crops.Profile(commodity)
}

// Compute returns the breakdown for buying a full truck at buyPriceQtl and
// selling what survives transit at sellPriceQtl, distanceKm away.
func (c *ProfitCalculator) Compute(commodity string, distanceKm, buyPriceQtl, sellPriceQtl float64, overrides models.CostOverrides) models.ProfitBreakdown {
	profile := c.crops.Profile(commodity)

	freightRate := c.defaults.FreightRate
	if overrides.FreightRate != nil {
		freightRate = *overrides.FreightRate
	}
	taxRate := c.defaults.TaxRate
	if overrides.TaxRate != nil {
		taxRate = *overrides.TaxRate
	}
	laborRate := profile.Labor
	if overrides.LaborRate != nil {
		laborRate = *overrides.LaborRate
	}

	sellableQty := TruckCapacityQtl * (1 - profile.Wastage)
	totalBuyCost := buyPriceQtl * TruckCapacityQtl
	totalSellRevenue := sellPriceQtl * sellableQty
	freightCost := distanceKm * freightRate
	totalLabor := laborRate * TruckCapacityQtl
	mandiFees := (totalBuyCost + totalSellRevenue) * taxRate

	return models.ProfitBreakdown{
		NetProfit:    totalSellRevenue - totalBuyCost - freightCost - totalLabor - mandiFees,
		GrossProfit:  (sellPriceQtl-buyPriceQtl)*TruckCapacityQtl - freightCost,
		WastageLoss:  (TruckCapacityQtl * profile.Wastage) * sellPriceQtl,
		FeesAndLabor: totalLabor + mandiFees,
		Freight:      freightCost,
	}
}
