package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agro-trader/internal/models"
)

func TestFindWidestSpread_Threshold(t *testing.T) {
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		high    float64
		wantGap float64
		wantNil bool
	}{
		{name: "gap equal to threshold", high: 1500, wantNil: true},
		{name: "gap one above threshold", high: 1501, wantGap: 501},
		{name: "gap below threshold", high: 1200, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []*models.MarketPriceRecord{
				priceRow("Rajasthan", "Jaipur", "Onion", 1000, day),
				priceRow("Rajasthan", "Kota", "Onion", tt.high, day),
			}

			alert := FindWidestSpread(records, 500)
			if tt.wantNil {
				assert.Nil(t, alert)
				return
			}
			require.NotNil(t, alert)
			assert.Equal(t, "Rajasthan", alert.State)
			assert.Equal(t, "Onion", alert.Commodity)
			assert.Equal(t, 1000.0, alert.MinPrice)
			assert.Equal(t, tt.high, alert.MaxPrice)
			assert.Equal(t, tt.wantGap, alert.PriceGap)
			assert.True(t, alert.ArrivalDate.Equal(day))
		})
	}
}

func TestFindWidestSpread_PicksLargestOnLatestDay(t *testing.T) {
	today := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	records := []*models.MarketPriceRecord{
		// Wider, but stale.
		priceRow("Haryana", "Karnal", "Wheat", 1000, yesterday),
		priceRow("Haryana", "Rohtak", "Wheat", 9000, yesterday),

		priceRow("Madhya Pradesh", "Indore", "Soybean", 4000, today),
		priceRow("Madhya Pradesh", "Dewas", "Soybean", 4900, today),
		priceRow("Madhya Pradesh", "Ujjain", "Soybean", 4300, today),
		priceRow("Chhattisgarh", "Raipur", "Tomato", 1200, today),
		priceRow("Chhattisgarh", "Durg", "Tomato", 1900, today),
		// Same commodity in another state is a different group.
		priceRow("Rajasthan", "Jaipur", "Tomato", 100, today),
	}

	alert := FindWidestSpread(records, 500)
	require.NotNil(t, alert)
	assert.Equal(t, "Madhya Pradesh", alert.State)
	assert.Equal(t, "Soybean", alert.Commodity)
	assert.Equal(t, 900.0, alert.PriceGap)
}

func TestFindWidestSpread_TieBreak(t *testing.T) {
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	records := []*models.MarketPriceRecord{
		priceRow("Telangana", "Warangal", "Cotton", 6000, day),
		priceRow("Telangana", "Adilabad", "Cotton", 7000, day),
		priceRow("Haryana", "Sirsa", "Mustard", 5000, day),
		priceRow("Haryana", "Hisar", "Mustard", 6000, day),
		priceRow("Haryana", "Sirsa", "Cotton", 6000, day),
		priceRow("Haryana", "Hisar", "Cotton", 7000, day),
	}

	for i := 0; i < 5; i++ {
		alert := FindWidestSpread(records, 500)
		require.NotNil(t, alert)
		assert.Equal(t, "Haryana", alert.State)
		assert.Equal(t, "Cotton", alert.Commodity)
	}
}

func TestFindWidestSpread_Empty(t *testing.T) {
	assert.Nil(t, FindWidestSpread(nil, 500))
	assert.Nil(t, FindWidestSpread([]*models.MarketPriceRecord{nil}, 500))
}

func TestVolatilityService_Scan(t *testing.T) {
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	repo := &stubPriceRepo{records: []*models.MarketPriceRecord{
		priceRow("Andhra Pradesh", "Kurnool", "Onion", 900, day),
		priceRow("Andhra Pradesh", "Guntur", "Onion", 1700, day),
	}}
	logger, collector := testDeps(t)
	svc := NewVolatilityService(repo, 0, logger, collector)

	alert := svc.Scan(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, 800.0, alert.PriceGap)
	assert.Equal(t, 800.0, testutil.ToFloat64(collector.VolatilityPriceGap))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.VolatilityScansTotal.WithLabelValues("alert")))
}

func TestVolatilityService_ScanStorageError(t *testing.T) {
	repo := &stubPriceRepo{err: errors.New("timeout")}
	logger, collector := testDeps(t)
	svc := NewVolatilityService(repo, 500, logger, collector)

	assert.Nil(t, svc.Scan(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.VolatilityScansTotal.WithLabelValues("error")))
}
