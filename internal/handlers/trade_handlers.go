package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"agro-trader/internal/models"
	"agro-trader/internal/scheduler"
	"agro-trader/internal/services"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

// OpportunityFinder runs route searches
type OpportunityFinder interface {
	FindOpportunities(ctx context.Context, q services.OpportunityQuery) (*services.OpportunityResult, error)
	BestRegionalRoute(ctx context.Context, hubs, crops []string, floor float64) *models.RegionalDeal
}

// MarketLister lists trusted prices
type MarketLister interface {
	FetchTrusted(ctx context.Context, commodityQuery string) []models.MarketPriceRecord
}

// LocationResolver resolves and keys market names
type LocationResolver interface {
	Resolve(ctx context.Context, marketName string) (models.Coordinate, bool)
	Key(marketName string) string
}

// VolatilityScanner produces the current volatility alert
type VolatilityScanner interface {
	Scan(ctx context.Context) *models.VolatilityAlert
}

// HealthChecker reports whether storage is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// TradeDeps bundles what TradeHandler serves. Board may be nil, in which
// case volatility is scanned on demand and /api/regions is empty. MinProfit
// is used when a search does not give min_profit.
type TradeDeps struct {
	Opportunities OpportunityFinder
	Markets       MarketLister
	Locations     LocationResolver
	Routes        services.DistanceResolver
	Calculator    *services.ProfitCalculator
	Volatility    VolatilityScanner
	Board         *scheduler.Board
	Health        HealthChecker
	MinProfit     float64
}

// TradeHandler serves the route-profit API
type TradeHandler struct {
	deps    TradeDeps
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(deps TradeDeps, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *TradeHandler {
	return &TradeHandler{
		deps:    deps,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ListResponse wraps a list of items
type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

// OpportunityResponse is a route search result plus the rounded view of
// each opportunity
type OpportunityResponse struct {
	*services.OpportunityResult
	Summaries []models.OpportunitySummary `json:"summaries"`
}

// LocationResponse is a resolved market location
type LocationResponse struct {
	Name string  `json:"name"`
	Key  string  `json:"key"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// RouteResponse is a resolved driving distance
type RouteResponse struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceKm float64 `json:"distance_km"`
}

// ProfitResponse is a single profit calculation
type ProfitResponse struct {
	Commodity  string                 `json:"commodity"`
	Profile    models.CropProfile     `json:"profile"`
	DistanceKm float64                `json:"distance_km"`
	BuyPrice   float64                `json:"buy_price"`
	SellPrice  float64                `json:"sell_price"`
	Financials models.ProfitBreakdown `json:"financials"`
}

// RegionsResponse is the last scheduled regional scan
type RegionsResponse struct {
	Regions   map[string]*models.RegionalDeal `json:"regions"`
	UpdatedAt *time.Time                      `json:"updated_at,omitempty"`
}

// GetOpportunities handles GET /api/opportunities
func (h *TradeHandler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	base := strings.TrimSpace(q.Get("base"))
	commodity := strings.TrimSpace(q.Get("commodity"))
	if base == "" || commodity == "" {
		h.sendError(w, r, "base and commodity are required", http.StatusBadRequest)
		return
	}

	minProfit, err := parseFloatParam(q.Get("min_profit"), "min_profit", h.deps.MinProfit)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	maxDistance, err := parseFloatParam(q.Get("max_distance"), "max_distance", 0)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	overrides, err := parseOverrides(q)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.deps.Opportunities.FindOpportunities(ctx, services.OpportunityQuery{
		BaseCity:      base,
		Commodity:     commodity,
		MinProfit:     minProfit,
		MaxDistanceKm: maxDistance,
		Overrides:     overrides,
	})
	switch {
	case errors.Is(err, services.ErrNoMarketData):
		h.sendError(w, r, fmt.Sprintf("no reliable data found for %q", commodity), http.StatusNotFound)
		return
	case errors.Is(err, services.ErrBaseNotMapped):
		h.sendError(w, r, fmt.Sprintf("could not map base city %q", base), http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.logger.Error(ctx, "[API_OPPORTUNITIES_ERROR] Route search aborted", logging.Fields{
			"base_city": base,
			"commodity": commodity,
		}, err)
		h.sendError(w, r, "route search did not complete", http.StatusServiceUnavailable)
		return
	}

	summaries := make([]models.OpportunitySummary, 0, len(result.Opportunities))
	for _, o := range result.Opportunities {
		summaries = append(summaries, o.Summary())
	}

	h.sendJSON(w, OpportunityResponse{OpportunityResult: result, Summaries: summaries}, http.StatusOK)
}

// GetMarkets handles GET /api/markets
func (h *TradeHandler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	commodity := strings.TrimSpace(r.URL.Query().Get("commodity"))
	if commodity == "" {
		h.sendError(w, r, "commodity is required", http.StatusBadRequest)
		return
	}

	records := h.deps.Markets.FetchTrusted(r.Context(), commodity)
	h.sendJSON(w, ListResponse{Data: records, Total: len(records)}, http.StatusOK)
}

// GetLocation handles GET /api/locations/{name}
func (h *TradeHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)["name"])

	coord, ok := h.deps.Locations.Resolve(r.Context(), name)
	if !ok {
		h.sendError(w, r, fmt.Sprintf("location not found: %s", name), http.StatusNotFound)
		return
	}

	h.sendJSON(w, LocationResponse{
		Name: name,
		Key:  h.deps.Locations.Key(name),
		Lat:  coord.Lat,
		Lon:  coord.Lon,
	}, http.StatusOK)
}

// GetRoute handles GET /api/routes
func (h *TradeHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		h.sendError(w, r, "from and to are required", http.StatusBadRequest)
		return
	}

	origin, ok := h.deps.Locations.Resolve(ctx, from)
	if !ok {
		h.sendError(w, r, fmt.Sprintf("location not found: %s", from), http.StatusNotFound)
		return
	}
	dest, ok := h.deps.Locations.Resolve(ctx, to)
	if !ok {
		h.sendError(w, r, fmt.Sprintf("location not found: %s", to), http.StatusNotFound)
		return
	}

	km, ok := h.deps.Routes.Resolve(ctx, origin, dest, from, to)
	if !ok {
		h.sendError(w, r, fmt.Sprintf("no route between %s and %s", from, to), http.StatusNotFound)
		return
	}

	h.sendJSON(w, RouteResponse{From: from, To: to, DistanceKm: km}, http.StatusOK)
}

// GetProfit handles GET /api/profit
func (h *TradeHandler) GetProfit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	commodity := strings.TrimSpace(q.Get("commodity"))
	if commodity == "" {
		h.sendError(w, r, "commodity is required", http.StatusBadRequest)
		return
	}

	values := make(map[string]float64, 3)
	for _, name := range []string{"distance", "buy", "sell"} {
		raw := q.Get(name)
		if raw == "" {
			h.sendError(w, r, name+" is required", http.StatusBadRequest)
			return
		}
		v, err := parseFloatParam(raw, name, 0)
		if err != nil {
			h.sendError(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		values[name] = v
	}

	overrides, err := parseOverrides(q)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	h.sendJSON(w, ProfitResponse{
		Commodity:  commodity,
		Profile:    h.deps.Calculator.Profile(commodity),
		DistanceKm: values["distance"],
		BuyPrice:   values["buy"],
		SellPrice:  values["sell"],
		Financials: h.deps.Calculator.Compute(commodity, values["distance"], values["buy"], values["sell"], overrides),
	}, http.StatusOK)
}

// GetVolatility handles GET /api/volatility. It serves the last scheduled
// scan unless refresh=true or no scan has run yet.
func (h *TradeHandler) GetVolatility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var alert *models.VolatilityAlert
	scanned := false
	if h.deps.Board != nil && r.URL.Query().Get("refresh") != "true" {
		var at time.Time
		alert, at = h.deps.Board.Volatility()
		scanned = !at.IsZero()
	}
	if !scanned {
		alert = h.deps.Volatility.Scan(ctx)
		if h.deps.Board != nil {
			h.deps.Board.SetVolatility(alert, time.Now().UTC())
		}
	}

	if alert == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.sendJSON(w, alert, http.StatusOK)
}

// GetRegionalBest handles GET /api/regional-best
func (h *TradeHandler) GetRegionalBest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	hubs := splitList(q.Get("hubs"))
	crops := splitList(q.Get("crops"))
	if len(hubs) == 0 || len(crops) == 0 {
		h.sendError(w, r, "hubs and crops are required", http.StatusBadRequest)
		return
	}
	floor, err := parseFloatParam(q.Get("floor"), "floor", 0)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	deal := h.deps.Opportunities.BestRegionalRoute(r.Context(), hubs, crops, floor)
	if deal == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.sendJSON(w, deal, http.StatusOK)
}

// GetRegions handles GET /api/regions
func (h *TradeHandler) GetRegions(w http.ResponseWriter, r *http.Request) {
	resp := RegionsResponse{Regions: map[string]*models.RegionalDeal{}}
	if h.deps.Board != nil {
		deals, at := h.deps.Board.Regional()
		resp.Regions = deals
		if !at.IsZero() {
			resp.UpdatedAt = &at
		}
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *TradeHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.deps.Health != nil {
		if err := h.deps.Health.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Storage unreachable", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "unhealthy"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	h.sendJSON(w, status, code)
}

// sendJSON sends a JSON response
func (h *TradeHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *TradeHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		h.metrics.RecordAPIError(http.StatusText(statusCode), routeTemplate(r))
	} else {
		h.metrics.RecordAPIError("client_error", routeTemplate(r))
	}

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all trade API routes
func (h *TradeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/opportunities", h.GetOpportunities).Methods("GET")
	router.HandleFunc("/api/markets", h.GetMarkets).Methods("GET")
	router.HandleFunc("/api/locations/{name}", h.GetLocation).Methods("GET")
	router.HandleFunc("/api/routes", h.GetRoute).Methods("GET")
	router.HandleFunc("/api/profit", h.GetProfit).Methods("GET")
	router.HandleFunc("/api/volatility", h.GetVolatility).Methods("GET")
	router.HandleFunc("/api/regional-best", h.GetRegionalBest).Methods("GET")
	router.HandleFunc("/api/regions", h.GetRegions).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// parseFloatParam parses a non-negative number; raw == "" yields def
func parseFloatParam(raw, name string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, &models.ValidationError{Field: name, Value: raw, Message: fmt.Sprintf("invalid %s, expected a non-negative number", name)}
	}
	return v, nil
}

// parseOverrides reads freight (per km), tax (percent) and labor (per
// quintal). Zero or absent keeps the default.
func parseOverrides(q url.Values) (models.CostOverrides, error) {
	var out models.CostOverrides

	freight, err := parseFloatParam(q.Get("freight"), "freight", 0)
	if err != nil {
		return out, err
	}
	tax, err := parseFloatParam(q.Get("tax"), "tax", 0)
	if err != nil {
		return out, err
	}
	if tax >= 100 {
		return out, &models.ValidationError{Field: "tax", Value: q.Get("tax"), Message: "invalid tax, expected a percentage below 100"}
	}
	labor, err := parseFloatParam(q.Get("labor"), "labor", 0)
	if err != nil {
		return out, err
	}

	if freight > 0 {
		out.FreightRate = &freight
	}
	if tax > 0 {
		rate := tax / 100
		out.TaxRate = &rate
	}
	if labor > 0 {
		out.LaborRate = &labor
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
