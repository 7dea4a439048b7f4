package services

import (
	"context"
	"errors"

	"agro-trader/internal/clients"
)

const (
	cacheLocation = "location"
	cacheRoute    = "route"

	lookupHit   = "hit"
	lookupMiss  = "miss"
	lookupError = "error"

	providerGeocoder = "geocoder"
	providerRouter   = "router"
)

// upstreamErrorType buckets a geocoder/router failure for metrics
func upstreamErrorType(err error) string {
	var apiErr *clients.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &apiErr) && apiErr.IsTransient():
		return "transient"
	case errors.As(err, &apiErr):
		return "rejected"
	default:
		return "transport"
	}
}
