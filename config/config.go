package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Kassalapp KassalappConfig `mapstructure:"kassalapp"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// KassalappConfig holds grocery catalog API configuration
type KassalappConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LookupConfig controls per-barcode price lookups and nearby store searches
type LookupConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Concurrency int           `mapstructure:"concurrency"`
	RadiusKm    float64       `mapstructure:"radius_km"`
	StoreLimit  int           `mapstructure:"store_limit"`
}

// RankingConfig holds store ranking weights
type RankingConfig struct {
	MinCoverage    float64 `mapstructure:"min_coverage"`
	CoverageWeight float64 `mapstructure:"coverage_weight"`
	MaxResults     int     `mapstructure:"max_results"`
	ApplyQuantity  bool    `mapstructure:"apply_quantity"`
}

// StorageConfig holds shopping list storage configuration
type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP float64 `mapstructure:"per_ip"`
	Burst int     `mapstructure:"burst"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load loads configuration from a .env file, environment variables and
// config files, in increasing order of precedence for env over file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/smartshop/")

	// SMARTSHOP_KASSALAPP_API_KEY -> kassalapp.api_key
	v.SetEnvPrefix("SMARTSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so environment overrides are picked up on Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("kassalapp.api_key", "")
	v.SetDefault("kassalapp.base_url", "https://kassal.app/api/v1")
	v.SetDefault("kassalapp.timeout", "15s")
	v.SetDefault("kassalapp.requests_per_second", 2)
	v.SetDefault("kassalapp.burst", 5)

	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("lookup.max_attempts", 3)
	v.SetDefault("lookup.backoff", "600ms")
	v.SetDefault("lookup.concurrency", 6)
	v.SetDefault("lookup.radius_km", 10)
	v.SetDefault("lookup.store_limit", 100)

	v.SetDefault("ranking.min_coverage", 0.60)
	v.SetDefault("ranking.coverage_weight", 50)
	v.SetDefault("ranking.max_results", 3)
	v.SetDefault("ranking.apply_quantity", true)

	v.SetDefault("storage.sqlite_path", "smartshop.db")

	v.SetDefault("ratelimit.per_ip", 10)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Kassalapp.APIKey == "" {
		return fmt.Errorf("Kassalapp API key is required (set SMARTSHOP_KASSALAPP_API_KEY)")
	}
	if config.Ranking.MinCoverage < 0 || config.Ranking.MinCoverage > 1 {
		return fmt.Errorf("ranking.min_coverage must be between 0 and 1, got: %v", config.Ranking.MinCoverage)
	}
	if config.Ranking.CoverageWeight < 0 {
		return fmt.Errorf("ranking.coverage_weight must not be negative, got: %v", config.Ranking.CoverageWeight)
	}
	if config.Ranking.MaxResults < 1 {
		return fmt.Errorf("ranking.max_results must be at least 1, got: %d", config.Ranking.MaxResults)
	}
	if config.Lookup.MaxAttempts < 1 {
		return fmt.Errorf("lookup.max_attempts must be at least 1, got: %d", config.Lookup.MaxAttempts)
	}
	if config.Lookup.RadiusKm <= 0 {
		return fmt.Errorf("lookup.radius_km must be positive, got: %v", config.Lookup.RadiusKm)
	}
	if config.Lookup.StoreLimit < 1 {
		return fmt.Errorf("lookup.store_limit must be at least 1, got: %d", config.Lookup.StoreLimit)
	}
	if config.RateLimit.PerIP <= 0 {
		return fmt.Errorf("ratelimit.per_ip must be positive, got: %v", config.RateLimit.PerIP)
	}
	return nil
}
