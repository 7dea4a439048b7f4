package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agro-trader/internal/models"
	"agro-trader/internal/scheduler"
	"agro-trader/internal/services"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

type stubFinder struct {
	result  *services.OpportunityResult
	err     error
	gotQ    services.OpportunityQuery
	deal    *models.RegionalDeal
	gotHubs []string
	gotFlr  float64
}

func (s *stubFinder) FindOpportunities(_ context.Context, q services.OpportunityQuery) (*services.OpportunityResult, error) {
	s.gotQ = q
	return s.result, s.err
}

func (s *stubFinder) BestRegionalRoute(_ context.Context, hubs, _ []string, floor float64) *models.RegionalDeal {
	s.gotHubs = hubs
	s.gotFlr = floor
	return s.deal
}

type stubMarkets struct {
	records []models.MarketPriceRecord
}

func (s stubMarkets) FetchTrusted(context.Context, string) []models.MarketPriceRecord {
	return s.records
}

type stubLocations map[string]models.Coordinate

func (s stubLocations) Resolve(_ context.Context, name string) (models.Coordinate, bool) {
	c, ok := s[name]
	return c, ok
}

func (s stubLocations) Key(name string) string {
	return services.NormalizeMarketName(name)
}

type stubRoutes struct {
	km float64
	ok bool
}

func (s stubRoutes) Resolve(context.Context, models.Coordinate, models.Coordinate, string, string) (float64, bool) {
	return s.km, s.ok
}

type stubScanner struct {
	alert *models.VolatilityAlert
	calls int
}

func (s *stubScanner) Scan(context.Context) *models.VolatilityAlert {
	s.calls++
	return s.alert
}

type stubHealth struct {
	err error
}

func (s stubHealth) HealthCheck(context.Context) error {
	return s.err
}

func newTestRouter(t *testing.T, deps TradeDeps) *mux.Router {
	t.Helper()
	logger := logging.NewNop()
	collector := metrics.NewCollector("agro_test", prometheus.NewRegistry())
	if deps.Calculator == nil {
		deps.Calculator = services.NewProfitCalculator(services.DefaultCropRegistry(), services.DefaultCostDefaults())
	}

	router := mux.NewRouter()
	router.Use(RequestMiddleware(logger, collector))
	NewTradeHandler(deps, logger, collector).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetOpportunities(t *testing.T) {
	local := &models.MarketPriceRecord{State: "Chhattisgarh", Market: "Raigarh", Commodity: "Tomato", ModalPrice: 1000}
	finder := &stubFinder{result: &services.OpportunityResult{
		BaseCity:    "Raigarh",
		Commodity:   "Tomato",
		LocalMarket: local,
		Opportunities: []models.Opportunity{{
			Market:     "Durg",
			State:      "Chhattisgarh",
			DistanceKm: 290.04,
			BuyPrice:   1000,
			SellPrice:  1600,
			Financials: models.ProfitBreakdown{NetProfit: 27634.4, Freight: 10151.4},
		}},
	}}
	router := newTestRouter(t, TradeDeps{Opportunities: finder, MinProfit: 5000})

	rec := serve(router, "/api/opportunities?base=Raigarh&commodity=Tomato&freight=40&tax=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body struct {
		LocalMarket   *models.MarketPriceRecord `json:"local_market"`
		Opportunities []models.Opportunity      `json:"opportunities"`
		Summaries     []map[string]interface{}  `json:"summaries"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Raigarh", body.LocalMarket.Market)
	require.Len(t, body.Opportunities, 1)
	require.Len(t, body.Summaries, 1)
	assert.Equal(t, "290", body.Summaries[0]["distance_km"])
	assert.Equal(t, "27634", body.Summaries[0]["net_profit"])

	assert.Equal(t, "Raigarh", finder.gotQ.BaseCity)
	assert.Equal(t, 5000.0, finder.gotQ.MinProfit)
	assert.Zero(t, finder.gotQ.MaxDistanceKm)
	require.NotNil(t, finder.gotQ.Overrides.FreightRate)
	assert.Equal(t, 40.0, *finder.gotQ.Overrides.FreightRate)
	require.NotNil(t, finder.gotQ.Overrides.TaxRate)
	assert.InDelta(t, 0.02, *finder.gotQ.Overrides.TaxRate, 1e-12)
	assert.Nil(t, finder.gotQ.Overrides.LaborRate)
}

func TestGetOpportunities_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"missing base", "/api/opportunities?commodity=Tomato", nil, http.StatusBadRequest},
		{"negative min profit", "/api/opportunities?base=Raipur&commodity=Tomato&min_profit=-1", nil, http.StatusBadRequest},
		{"tax out of range", "/api/opportunities?base=Raipur&commodity=Tomato&tax=100", nil, http.StatusBadRequest},
		{"no market data", "/api/opportunities?base=Raipur&commodity=Saffron", services.ErrNoMarketData, http.StatusNotFound},
		{"base not mapped", "/api/opportunities?base=Atlantis&commodity=Tomato", services.ErrBaseNotMapped, http.StatusUnprocessableEntity},
		{"aborted", "/api/opportunities?base=Raipur&commodity=Tomato", context.DeadlineExceeded, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := &stubFinder{err: tt.err}
			if tt.err == nil {
				finder.result = &services.OpportunityResult{}
			}
			rec := serve(newTestRouter(t, TradeDeps{Opportunities: finder}), tt.target)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.status, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGetMarkets(t *testing.T) {
	markets := stubMarkets{records: []models.MarketPriceRecord{
		{Market: "Raipur", ModalPrice: 1500},
		{Market: "Durg", ModalPrice: 1600},
	}}
	router := newTestRouter(t, TradeDeps{Markets: markets})

	rec := serve(router, "/api/markets?commodity=Tomato")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data  []models.MarketPriceRecord `json:"data"`
		Total int                        `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "Durg", body.Data[1].Market)

	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/markets").Code)
}

func TestGetLocation(t *testing.T) {
	router := newTestRouter(t, TradeDeps{Locations: stubLocations{
		"Raipur APMC": {Lat: 21.25, Lon: 81.63},
	}})

	rec := serve(router, "/api/locations/Raipur%20APMC")
	require.Equal(t, http.StatusOK, rec.Code)
	var body LocationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Raipur", body.Key)
	assert.Equal(t, 21.25, body.Lat)

	assert.Equal(t, http.StatusNotFound, serve(router, "/api/locations/Atlantis").Code)
}

func TestGetRoute(t *testing.T) {
	locations := stubLocations{
		"Raigarh": {Lat: 21.89, Lon: 83.39},
		"Raipur":  {Lat: 21.25, Lon: 81.63},
	}

	rec := serve(newTestRouter(t, TradeDeps{Locations: locations, Routes: stubRoutes{km: 252.3, ok: true}}), "/api/routes?from=Raigarh&to=Raipur")
	require.Equal(t, http.StatusOK, rec.Code)
	var body RouteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 252.3, body.DistanceKm)

	noRoute := newTestRouter(t, TradeDeps{Locations: locations, Routes: stubRoutes{}})
	assert.Equal(t, http.StatusNotFound, serve(noRoute, "/api/routes?from=Raigarh&to=Raipur").Code)
	assert.Equal(t, http.StatusNotFound, serve(noRoute, "/api/routes?from=Raigarh&to=Atlantis").Code)
	assert.Equal(t, http.StatusBadRequest, serve(noRoute, "/api/routes?from=Raigarh").Code)
}

func TestGetProfit(t *testing.T) {
	router := newTestRouter(t, TradeDeps{})

	rec := serve(router, "/api/profit?commodity=Wheat&distance=100&buy=2000&sell=2200")
	require.Equal(t, http.StatusOK, rec.Code)
	var body ProfitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "wheat", body.Profile.Commodity)
	assert.InDelta(t, 566, body.Financials.NetProfit, 1e-6)
	assert.InDelta(t, 3500, body.Financials.Freight, 1e-6)

	// tax is given in percent
	rec = serve(router, "/api/profit?commodity=Wheat&distance=100&buy=2000&sell=2200&tax=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, -7790, body.Financials.NetProfit, 1e-6)

	// zero keeps the default
	rec = serve(router, "/api/profit?commodity=Wheat&distance=100&buy=2000&sell=2200&freight=0")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, 3500, body.Financials.Freight, 1e-6)

	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/profit?commodity=Wheat&distance=100&buy=2000").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/profit?commodity=Wheat&distance=abc&buy=1&sell=2").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/profit?distance=1&buy=1&sell=2").Code)
}

func TestGetVolatility(t *testing.T) {
	alert := &models.VolatilityAlert{State: "Haryana", Commodity: "Wheat", PriceGap: 600}

	t.Run("no board scans on demand", func(t *testing.T) {
		scanner := &stubScanner{alert: alert}
		rec := serve(newTestRouter(t, TradeDeps{Volatility: scanner}), "/api/volatility")
		require.Equal(t, http.StatusOK, rec.Code)
		var body models.VolatilityAlert
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, 600.0, body.PriceGap)
		assert.Equal(t, 1, scanner.calls)
	})

	t.Run("nothing above threshold", func(t *testing.T) {
		rec := serve(newTestRouter(t, TradeDeps{Volatility: &stubScanner{}}), "/api/volatility")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("board serves last scan", func(t *testing.T) {
		board := scheduler.NewBoard()
		board.SetVolatility(nil, time.Now())
		scanner := &stubScanner{alert: alert}
		router := newTestRouter(t, TradeDeps{Volatility: scanner, Board: board})

		assert.Equal(t, http.StatusNoContent, serve(router, "/api/volatility").Code)
		assert.Zero(t, scanner.calls)

		assert.Equal(t, http.StatusOK, serve(router, "/api/volatility?refresh=true").Code)
		assert.Equal(t, 1, scanner.calls)
		got, _ := board.Volatility()
		assert.Equal(t, alert, got)
	})
}

func TestGetRegionalBest(t *testing.T) {
	deal := &models.RegionalDeal{BaseCity: "Raigarh", TargetMarket: "Durg", Crop: "Tomato"}
	finder := &stubFinder{deal: deal}
	router := newTestRouter(t, TradeDeps{Opportunities: finder})

	rec := serve(router, "/api/regional-best?hubs=Raipur,%20Raigarh,&crops=Tomato&floor=3000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Raipur", "Raigarh"}, finder.gotHubs)
	assert.Equal(t, 3000.0, finder.gotFlr)

	finder.deal = nil
	assert.Equal(t, http.StatusNoContent, serve(router, "/api/regional-best?hubs=Raipur&crops=Tomato").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/regional-best?hubs=Raipur").Code)
}

func TestGetRegions(t *testing.T) {
	rec := serve(newTestRouter(t, TradeDeps{}), "/api/regions")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty RegionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&empty))
	assert.Empty(t, empty.Regions)
	assert.Nil(t, empty.UpdatedAt)

	board := scheduler.NewBoard()
	board.SetRegional(map[string]*models.RegionalDeal{"central": {Crop: "Tomato"}, "north": nil}, time.Now())
	rec = serve(newTestRouter(t, TradeDeps{Board: board}), "/api/regions")
	var body RegionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Contains(t, body.Regions, "central")
	assert.Equal(t, "Tomato", body.Regions["central"].Crop)
	assert.Nil(t, body.Regions["north"])
	assert.NotNil(t, body.UpdatedAt)
}

func TestHealthCheck(t *testing.T) {
	rec := serve(newTestRouter(t, TradeDeps{Health: stubHealth{}}), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(newTestRouter(t, TradeDeps{Health: stubHealth{err: errors.New("connection refused")}}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestRequestMiddleware_KeepsCallerRequestID(t *testing.T) {
	router := newTestRouter(t, TradeDeps{})
	req := httptest.NewRequest(http.MethodGet, "/api/regions", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestOpenAPISpec(t *testing.T) {
	rec := httptest.NewRecorder()
	OpenAPISpec(rec, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.json", nil))

	var spec map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&spec))
	paths, ok := spec["paths"].(map[string]interface{})
	require.True(t, ok)
	for _, p := range []string{"/api/opportunities", "/api/profit", "/api/volatility", "/api/regional-best", "/health"} {
		assert.Contains(t, paths, p)
	}
}
