// Package clients holds the HTTP clients for the third-party geocoding and
// road-routing services.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes caps upstream responses; both services answer in a few KB.
const maxBodyBytes = 1 << 20

// APIError is returned for any non-2xx upstream response
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Body)
}

// IsTransient reports whether a retry later could succeed
func (e *APIError) IsTransient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func doGet(ctx context.Context, httpClient *http.Client, provider, fullURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &APIError{Provider: provider, Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func joinURL(base, path string, query url.Values) string {
	full := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
