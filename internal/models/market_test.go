package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpportunity_Summary(t *testing.T) {
	opp := Opportunity{
		Market:     "Bilaspur",
		DistanceKm: 123.456,
		BuyPrice:   2000,
		SellPrice:  2200.4,
		Financials: ProfitBreakdown{
			NetProfit:    566.0000000001,
			GrossProfit:  16500,
			WastageLoss:  2200.5,
			FeesAndLabor: 13734.000000000002,
			Freight:      3500,
		},
	}

	s := opp.Summary()

	assert.Equal(t, "Bilaspur", s.Market)
	assert.Equal(t, "123.5", s.DistanceKm.String())
	assert.Equal(t, "2000", s.BuyPrice.String())
	assert.Equal(t, "2200", s.SellPrice.String())
	assert.Equal(t, "566", s.NetProfit.String())
	assert.Equal(t, "16500", s.GrossMargin.String())
	assert.Equal(t, "2201", s.SpoilageLoss.String())
	assert.Equal(t, "13734", s.FeesAndLabor.String())
	assert.Equal(t, "3500", s.Freight.String())
}

func TestRoundCurrency_Negative(t *testing.T) {
	assert.Equal(t, "-3", RoundCurrency(-2.5).String())
	assert.Equal(t, "-2", RoundCurrency(-2.4).String())
}

func TestLocationCoordinate_Coordinate(t *testing.T) {
	loc := LocationCoordinate{CityName: "Raigarh", Lat: 21.89, Lon: 83.39}
	assert.Equal(t, Coordinate{Lat: 21.89, Lon: 83.39}, loc.Coordinate())
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "distance",
		Value:   "-4",
		Message: "distance must be non-negative",
	}

	assert.Equal(t, "distance must be non-negative", err.Error())
	assert.False(t, err.IsTransient())
}
