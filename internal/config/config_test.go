package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "agro_data", cfg.Database.Database)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "India", cfg.Geocoding.CountryHint)
	assert.Equal(t, 10*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, []string{"Haryana", "Rajasthan", "Andhra Pradesh", "Telangana", "Madhya Pradesh", "Chhattisgarh"}, cfg.Market.TrustedStates)
	assert.Equal(t, []string{"APMC", "Veg"}, cfg.Market.NoiseTokens)
	assert.Equal(t, 400.0, cfg.Market.MaxDistanceKm)
	assert.Equal(t, 35.0, cfg.Costs.FreightRate)
	assert.Equal(t, 0.03, cfg.Costs.TaxRate)
	assert.Equal(t, 500.0, cfg.Volatility.Threshold)
	assert.False(t, cfg.Redis.Enabled)
	require.Len(t, cfg.Market.Regions, 2)
	assert.Equal(t, "central", cfg.Market.Regions[0].Name)
	assert.Equal(t, []string{"Wheat", "Mustard", "Cotton"}, cfg.Market.Regions[1].Crops)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AGRO_SERVER_PORT", "9090")
	t.Setenv("AGRO_DATABASE_HOST", "pg.internal")
	t.Setenv("AGRO_ROUTING_TIMEOUT", "3s")
	t.Setenv("AGRO_MARKET_TRUSTED_STATES", "Haryana, Punjab")
	t.Setenv("AGRO_VOLATILITY_THRESHOLD", "750")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "pg.internal", cfg.Database.Host)
	assert.Equal(t, 3*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, []string{"Haryana", "Punjab"}, cfg.Market.TrustedStates)
	assert.Equal(t, 750.0, cfg.Volatility.Threshold)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agro.yaml")
	content := []byte(`
market:
  max_distance_km: 250
  noise_tokens: ["APMC", "Veg", "Mandi"]
costs:
  freight_rate: 40
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("AGRO_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 250.0, cfg.Market.MaxDistanceKm)
	assert.Equal(t, []string{"APMC", "Veg", "Mandi"}, cfg.Market.NoiseTokens)
	assert.Equal(t, 40.0, cfg.Costs.FreightRate)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("AGRO_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Market.TrustedStates = nil
	cfg.Costs.TaxRate = 1.5
	cfg.Redis.Enabled = true
	cfg.Redis.URL = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "trusted_states")
	assert.Contains(t, err.Error(), "tax_rate")
	assert.Contains(t, err.Error(), "redis.url")
}
