package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// OSRMCodeOK is the only response code that carries a usable route
const OSRMCodeOK = "Ok"

// OSRMConfig configures OSRMClient
type OSRMConfig struct {
	BaseURL string
	Profile string
	Timeout time.Duration
}

// OSRMClient queries the OSRM route service for driving distances
type OSRMClient struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

// RouteResult is the subset of an OSRM route response used for pricing
type RouteResult struct {
	Code           string
	Message        string
	DistanceMeters float64
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// NewOSRMClient builds a client; httpClient may be nil
func NewOSRMClient(cfg OSRMConfig, httpClient *http.Client) *OSRMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://router.project-osrm.org"
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OSRMClient{
		baseURL:    cfg.BaseURL,
		profile:    cfg.Profile,
		httpClient: httpClient,
	}
}

// Route asks for the fastest driving route between two points. A non-Ok code
// is returned in RouteResult rather than as an error; OSRM reports NoRoute
// with HTTP 400 and that body is still decoded.
func (c *OSRMClient) Route(ctx context.Context, originLon, originLat, destLon, destLat float64) (*RouteResult, error) {
	path := fmt.Sprintf("/route/v1/%s/%s,%s;%s,%s",
		url.PathEscape(c.profile),
		formatCoord(originLon), formatCoord(originLat),
		formatCoord(destLon), formatCoord(destLat),
	)
	params := url.Values{}
	params.Set("overview", "false")

	body, err := doGet(ctx, c.httpClient, "osrm", joinURL(c.baseURL, path, params), nil)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest) {
		return nil, err
	}

	var resp osrmResponse
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to decode osrm response: %w", decodeErr)
	}

	result := &RouteResult{Code: resp.Code, Message: resp.Message}
	if resp.Code != OSRMCodeOK {
		return result, nil
	}
	if len(resp.Routes) == 0 {
		return nil, errors.New("osrm returned Ok without routes")
	}
	result.DistanceMeters = resp.Routes[0].Distance
	return result, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
