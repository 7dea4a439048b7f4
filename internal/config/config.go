package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for every agro-trader binary
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Geocoding  GeocodingConfig  `mapstructure:"geocoding"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Market     MarketConfig     `mapstructure:"market"`
	Costs      CostsConfig      `mapstructure:"costs"`
	Volatility VolatilityConfig `mapstructure:"volatility"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// GeocodingConfig points at a Nominatim-compatible search endpoint
type GeocodingConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	CountryHint  string        `mapstructure:"country_hint"`
	CountryCodes string        `mapstructure:"country_codes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RatePerSec   float64       `mapstructure:"rate_per_sec"`
	Burst        int           `mapstructure:"burst"`
}

// RoutingConfig points at an OSRM-compatible route endpoint
type RoutingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Profile string        `mapstructure:"profile"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait"`
}

type MarketConfig struct {
	TrustedStates   []string       `mapstructure:"trusted_states"`
	NoiseTokens     []string       `mapstructure:"noise_tokens"`
	MaxDistanceKm   float64        `mapstructure:"max_distance_km"`
	MinProfit       float64        `mapstructure:"min_profit"`
	RegionalFloor   float64        `mapstructure:"regional_floor"`
	Regions         []RegionConfig `mapstructure:"regions"`
	RegionsSchedule string         `mapstructure:"regions_schedule"`
}

// RegionConfig is a named set of buying hubs and crops scanned for the best
// regional route
type RegionConfig struct {
	Name  string   `mapstructure:"name"`
	Hubs  []string `mapstructure:"hubs"`
	Crops []string `mapstructure:"crops"`
}

type CostsConfig struct {
	FreightRate float64 `mapstructure:"freight_rate"`
	TaxRate     float64 `mapstructure:"tax_rate"`
}

type VolatilityConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
	Schedule  string  `mapstructure:"schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "agro_data")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "agro_pro_v3")
	v.SetDefault("geocoding.country_hint", "India")
	v.SetDefault("geocoding.country_codes", "in")
	v.SetDefault("geocoding.timeout", "10s")
	v.SetDefault("geocoding.rate_per_sec", 1.0)
	v.SetDefault("geocoding.burst", 1)

	v.SetDefault("routing.base_url", "http://router.project-osrm.org")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("routing.timeout", "10s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")
	v.SetDefault("redis.lock_wait", "15s")

	v.SetDefault("market.trusted_states", []string{
		"Haryana", "Rajasthan", "Andhra Pradesh", "Telangana", "Madhya Pradesh", "Chhattisgarh",
	})
	v.SetDefault("market.noise_tokens", []string{"APMC", "Veg"})
	v.SetDefault("market.max_distance_km", 400.0)
	v.SetDefault("market.min_profit", 5000.0)
	v.SetDefault("market.regional_floor", 3000.0)
	v.SetDefault("market.regions", []map[string]interface{}{
		{"name": "central", "hubs": []string{"Raipur", "Indore", "Raigarh"}, "crops": []string{"Tomato", "Soybean", "Paddy"}},
		{"name": "north", "hubs": []string{"Karnal", "Jaipur", "Rohtak"}, "crops": []string{"Wheat", "Mustard", "Cotton"}},
	})
	v.SetDefault("market.regions_schedule", "@every 1h")

	v.SetDefault("costs.freight_rate", 35.0)
	v.SetDefault("costs.tax_rate", 0.03)

	v.SetDefault("volatility.enabled", true)
	v.SetDefault("volatility.threshold", 500.0)
	v.SetDefault("volatility.schedule", "@every 30m")
}

// LoadConfig reads defaults, an optional YAML file named by AGRO_CONFIG_FILE,
// a .env file if present, and AGRO_* environment variables, in increasing
// precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AGRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("AGRO_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Market.TrustedStates = cleanList(cfg.Market.TrustedStates)
	cfg.Market.NoiseTokens = cleanList(cfg.Market.NoiseTokens)
	for i := range cfg.Market.Regions {
		cfg.Market.Regions[i].Hubs = cleanList(cfg.Market.Regions[i].Hubs)
		cfg.Market.Regions[i].Crops = cleanList(cfg.Market.Regions[i].Crops)
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("database.database is required"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("database.max_open_conns must be positive"))
	}
	if c.Geocoding.BaseURL == "" {
		errs = append(errs, errors.New("geocoding.base_url is required"))
	}
	if c.Geocoding.UserAgent == "" {
		errs = append(errs, errors.New("geocoding.user_agent is required by the Nominatim usage policy"))
	}
	if c.Geocoding.Timeout <= 0 || c.Routing.Timeout <= 0 {
		errs = append(errs, errors.New("upstream timeouts must be positive"))
	}
	if c.Routing.BaseURL == "" {
		errs = append(errs, errors.New("routing.base_url is required"))
	}
	if len(c.Market.TrustedStates) == 0 {
		errs = append(errs, errors.New("market.trusted_states must not be empty"))
	}
	if c.Market.MaxDistanceKm <= 0 {
		errs = append(errs, errors.New("market.max_distance_km must be positive"))
	}
	if c.Costs.FreightRate < 0 || c.Costs.TaxRate < 0 || c.Costs.TaxRate >= 1 {
		errs = append(errs, errors.New("costs.freight_rate must be >= 0 and costs.tax_rate in [0,1)"))
	}
	for i, r := range c.Market.Regions {
		if r.Name == "" || len(r.Hubs) == 0 || len(r.Crops) == 0 {
			errs = append(errs, fmt.Errorf("market.regions[%d] needs a name, hubs and crops", i))
		}
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required when redis is enabled"))
	}

	return errors.Join(errs...)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
