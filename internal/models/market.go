package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketPriceRecord is one day's modal price for a commodity at a mandi.
// Rows are written by the external ingestion job and never modified here.
type MarketPriceRecord struct {
	State       string    `json:"state" db:"state"`
	Market      string    `json:"market" db:"market"`
	Commodity   string    `json:"commodity" db:"commodity"`
	ModalPrice  float64   `json:"modal_price" db:"modal_price"`
	ArrivalDate time.Time `json:"arrival_date" db:"arrival_date"`
}

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`
}

// LocationCoordinate is a location_cache row keyed by normalized market name
type LocationCoordinate struct {
	CityName string  `json:"city_name" db:"city_name"`
	Lat      float64 `json:"lat" db:"lat"`
	Lon      float64 `json:"lon" db:"lon"`
}

// Coordinate drops the key
func (l LocationCoordinate) Coordinate() Coordinate {
	return Coordinate{Lat: l.Lat, Lon: l.Lon}
}

// RouteDistance is a route_cache row. Both directions are always stored.
type RouteDistance struct {
	Origin      string  `json:"origin" db:"origin"`
	Destination string  `json:"destination" db:"destination"`
	DistanceKm  float64 `json:"distance_km" db:"distance_km"`
}

// CropProfile carries per-commodity handling costs
type CropProfile struct {
	Commodity string  `json:"commodity"`
	Wastage   float64 `json:"wastage"` // fraction of the load lost in transit, [0,1)
	Labor     float64 `json:"labor"`   // currency per quintal
}

// CostOverrides replaces default rates when a field is non-nil
type CostOverrides struct {
	FreightRate *float64 `json:"freight_rate,omitempty"` // currency per km
	TaxRate     *float64 `json:"tax_rate,omitempty"`     // fraction of buy+sell value
	LaborRate   *float64 `json:"labor_rate,omitempty"`   // currency per quintal
}

// ProfitBreakdown is recomputed on every call and never persisted
type ProfitBreakdown struct {
	NetProfit    float64 `json:"net_profit"`
	GrossProfit  float64 `json:"gross_profit"`
	WastageLoss  float64 `json:"wastage_loss"`
	FeesAndLabor float64 `json:"fees_and_labor"`
	Freight      float64 `json:"freight"`
}

// VolatilityAlert is the widest intra-day spread for a (state, commodity) pair
type VolatilityAlert struct {
	State       string    `json:"state"`
	Commodity   string    `json:"commodity"`
	MinPrice    float64   `json:"min_price"`
	MaxPrice    float64   `json:"max_price"`
	PriceGap    float64   `json:"price_gap"`
	ArrivalDate time.Time `json:"arrival_date"`
}

// Opportunity is one profitable sell-to market for a base city
type Opportunity struct {
	Market     string          `json:"market"`
	State      string          `json:"state"`
	DistanceKm float64         `json:"distance_km"`
	BuyPrice   float64         `json:"buy_price"`
	SellPrice  float64         `json:"sell_price"`
	Financials ProfitBreakdown `json:"financials"`
}

// OpportunitySummary is the operator-facing view of an Opportunity with
// distance rounded to 0.1 km and money to whole currency units.
type OpportunitySummary struct {
	Market       string          `json:"market"`
	DistanceKm   decimal.Decimal `json:"distance_km"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	GrossMargin  decimal.Decimal `json:"gross_margin"`
	Freight      decimal.Decimal `json:"freight"`
	SpoilageLoss decimal.Decimal `json:"spoilage_loss"`
	FeesAndLabor decimal.Decimal `json:"fees_and_labor"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

// Summary rounds for presentation only; the float fields stay exact.
func (o Opportunity) Summary() OpportunitySummary {
	return OpportunitySummary{
		Market:       o.Market,
		DistanceKm:   decimal.NewFromFloat(o.DistanceKm).Round(1),
		BuyPrice:     RoundCurrency(o.BuyPrice),
		SellPrice:    RoundCurrency(o.SellPrice),
		GrossMargin:  RoundCurrency(o.Financials.GrossProfit),
		Freight:      RoundCurrency(o.Financials.Freight),
		SpoilageLoss: RoundCurrency(o.Financials.WastageLoss),
		FeesAndLabor: RoundCurrency(o.Financials.FeesAndLabor),
		NetProfit:    RoundCurrency(o.Financials.NetProfit),
	}
}

// RoundCurrency rounds half away from zero to whole currency units
func RoundCurrency(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(0)
}

// RegionalDeal is the single best route across a set of hubs and crops
type RegionalDeal struct {
	BaseCity     string          `json:"base_city"`
	TargetMarket string          `json:"target_market"`
	Crop         string          `json:"crop"`
	BuyPrice     float64         `json:"buy_price"`
	SellPrice    float64         `json:"sell_price"`
	DistanceKm   float64         `json:"distance_km"`
	Financials   ProfitBreakdown `json:"financials"`
}

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
