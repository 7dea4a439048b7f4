package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"agro-trader/internal/models"
)

// NominatimConfig configures NominatimClient
type NominatimConfig struct {
	BaseURL      string
	UserAgent    string
	CountryCodes string
	Timeout      time.Duration
	// RatePerSec throttles outgoing searches. The public instance allows 1/s.
	RatePerSec float64
	Burst      int
}

// NominatimClient geocodes free-text place queries
type NominatimClient struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimClient builds a client; httpClient may be nil
func NewNominatimClient(cfg NominatimConfig, httpClient *http.Client) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &NominatimClient{
		baseURL:      cfg.BaseURL,
		userAgent:    cfg.UserAgent,
		countryCodes: cfg.CountryCodes,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, cfg.Burst),
	}
}

// Geocode returns the best match for query, or nil when nothing matched
func (c *NominatimClient) Geocode(ctx context.Context, query string) (*models.Coordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("nominatim rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	headers := map[string]string{}
	if c.userAgent != "" {
		headers["User-Agent"] = c.userAgent
	}

	body, err := doGet(ctx, c.httpClient, "nominatim", joinURL(c.baseURL, "/search", params), headers)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}

	return &models.Coordinate{Lat: lat, Lon: lon}, nil
}
