// Package config provides unified configuration loading for the repair advisor.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the repair advisor service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Matcher       MatcherConfig       `yaml:"matcher"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Ranking       RankingConfig       `yaml:"ranking"`
	Recommend     RecommendConfig     `yaml:"recommend"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds Postgres connection settings for the knowledge store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds device-match cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// MatcherConfig holds device identification settings.
type MatcherConfig struct {
	// FuzzyThreshold is the minimum partial-ratio score (0-100) to accept a
	// fuzzy model match.
	FuzzyThreshold int `yaml:"fuzzy_threshold"`
	// AgreementThreshold is the minimum model similarity (0-100) for two
	// sources to count as agreeing on the same device.
	AgreementThreshold int `yaml:"agreement_threshold"`
}

// RetrievalConfig holds procedure retrieval settings.
type RetrievalConfig struct {
	ExactLimit   int `yaml:"exact_limit"`
	FuzzyLimit   int `yaml:"fuzzy_limit"`
	GenericLimit int `yaml:"generic_limit"`
	EnrichTopN   int `yaml:"enrich_top_n"`
}

// RankingConfig holds relevance scoring weights.
type RankingConfig struct {
	DeviceWeight  float64 `yaml:"device_weight"`
	ProblemWeight float64 `yaml:"problem_weight"`
	QualityWeight float64 `yaml:"quality_weight"`
	SearchWeight  float64 `yaml:"search_weight"`
}

// RecommendConfig holds personalized recommendation settings.
type RecommendConfig struct {
	MaxRecommendations int  `yaml:"max_recommendations"`
	DisableJitter      bool `yaml:"disable_jitter"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A missing path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	// Best effort; absent .env files are fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "postgres://localhost:5432/repair_advisor?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Matcher: MatcherConfig{
			FuzzyThreshold:     60,
			AgreementThreshold: 70,
		},
		Retrieval: RetrievalConfig{
			ExactLimit:   10,
			FuzzyLimit:   15,
			GenericLimit: 5,
			EnrichTopN:   5,
		},
		Ranking: RankingConfig{
			DeviceWeight:  0.4,
			ProblemWeight: 0.3,
			QualityWeight: 0.2,
			SearchWeight:  0.1,
		},
		Recommend: RecommendConfig{
			MaxRecommendations: 5,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "repair-advisor",
		},
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver: %q", c.Cache.Driver)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive")
	}
	if c.Matcher.FuzzyThreshold < 0 || c.Matcher.FuzzyThreshold > 100 {
		return fmt.Errorf("matcher fuzzy_threshold must be in [0,100]")
	}
	total := c.Ranking.DeviceWeight + c.Ranking.ProblemWeight +
		c.Ranking.QualityWeight + c.Ranking.SearchWeight
	if total <= 0 {
		return fmt.Errorf("ranking weights must sum to a positive value")
	}
	return nil
}

// applyEnvOverrides applies REPAIR_ADVISOR_* environment overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPAIR_ADVISOR_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPAIR_ADVISOR_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("REPAIR_ADVISOR_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REPAIR_ADVISOR_CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}
	if v := os.Getenv("REPAIR_ADVISOR_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REPAIR_ADVISOR_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("REPAIR_ADVISOR_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("REPAIR_ADVISOR_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
