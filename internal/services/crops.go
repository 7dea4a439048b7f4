package services

import (
	"fmt"
	"strings"

	"agro-trader/internal/models"
)

// DefaultCropKey names the profile used for unrecognised commodities
const DefaultCropKey = "default"

// DefaultCropProfiles is the built-in handling-cost table
var DefaultCropProfiles = []models.CropProfile{
	{Commodity: "tomato", Wastage: 0.08, Labor: 20},
	{Commodity: "onion", Wastage: 0.05, Labor: 18},
	{Commodity: "paddy", Wastage: 0.01, Labor: 12},
	{Commodity: "wheat", Wastage: 0.01, Labor: 12},
	{Commodity: "soybean", Wastage: 0.01, Labor: 15},
	{Commodity: "mustard", Wastage: 0.01, Labor: 15},
	{Commodity: "maize", Wastage: 0.02, Labor: 12},
	{Commodity: "cotton", Wastage: 0.00, Labor: 25},
	{Commodity: DefaultCropKey, Wastage: 0.03, Labor: 15},
}

// CropRegistry is an immutable commodity -> CropProfile table
type CropRegistry struct {
	profiles map[string]models.CropProfile
}

// NewCropRegistry validates profiles and indexes them by lower-cased commodity.
// A "default" entry is required.
func NewCropRegistry(profiles []models.CropProfile) (*CropRegistry, error) {
	index := make(map[string]models.CropProfile, len(profiles))
	for _, p := range profiles {
		key := cropKey(p.Commodity)
		if key == "" {
			return nil, &models.ValidationError{Field: "commodity", Message: "crop profile has an empty commodity"}
		}
		if p.Wastage < 0 || p.Wastage >= 1 {
			return nil, &models.ValidationError{
				Field:   "wastage",
				Value:   fmt.Sprint(p.Wastage),
				Message: fmt.Sprintf("wastage for %s must be in [0,1), got %v", key, p.Wastage),
			}
		}
		if p.Labor < 0 {
			return nil, &models.ValidationError{
				Field:   "labor",
				Value:   fmt.Sprint(p.Labor),
				Message: fmt.Sprintf("labor for %s must not be negative", key),
			}
		}
		if _, dup := index[key]; dup {
			return nil, &models.ValidationError{Field: "commodity", Value: key, Message: "duplicate crop profile: " + key}
		}
		p.Commodity = key
		index[key] = p
	}
	if _, ok := index[DefaultCropKey]; !ok {
		return nil, &models.ValidationError{Field: "commodity", Message: "crop profiles must include a default entry"}
	}
	return &CropRegistry{profiles: index}, nil
}

// DefaultCropRegistry returns the registry built from DefaultCropProfiles
func DefaultCropRegistry() *CropRegistry {
	r, err := NewCropRegistry(DefaultCropProfiles)
	if err != nil {
		panic(err)
	}
	return r
}

// Profile returns the profile for commodity, or the default profile.
// Lookup ignores case and surrounding whitespace.
func (r *CropRegistry) Profile(commodity string) models.CropProfile {
	if p, ok := r.profiles[cropKey(commodity)]; ok {
		return p
	}
	return r.profiles[DefaultCropKey]
}

// Known reports whether commodity has its own profile
func (r *CropRegistry) Known(commodity string) bool {
	key := cropKey(commodity)
	_, ok := r.profiles[key]
	return ok && key != DefaultCropKey
}

func cropKey(commodity string) string {
	return strings.ToLower(strings.TrimSpace(commodity))
}
