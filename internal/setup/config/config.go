package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrConfigFileNotFound is returned when no config file exists in any search path.
var ErrConfigFileNotFound = errors.New("could not find config file in any config path")

// Config represents the entire application configuration.
type Config struct {
	Debug          Debug                `koanf:"debug"`
	Server         Server               `koanf:"server"`
	Redis          Redis                `koanf:"redis"`
	PostgreSQL     PostgreSQL           `koanf:"postgresql"`
	CircuitBreaker CircuitBreaker       `koanf:"circuit_breaker"`
	Retry          Retry                `koanf:"retry"`
	Platforms      map[string]Platform  `koanf:"platforms"`
	Concurrency    Concurrency          `koanf:"concurrency"`
	Bulk           Bulk                 `koanf:"bulk"`
	RateLimits     map[string]RateLimit `koanf:"ratelimit"`
	Validator      Validator            `koanf:"validator"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
}

// Server contains REST server configuration.
type Server struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	DBName       string `koanf:"db_name"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// CircuitBreaker contains circuit breaker configuration for the HTTP client.
type CircuitBreaker struct {
	// Failures before the circuit opens.
	MaxFailures uint32 `koanf:"max_failures"`
	// Request timeout in milliseconds.
	FailureThreshold int `koanf:"failure_threshold"`
	// Recovery delay in milliseconds.
	RecoveryTimeout int `koanf:"recovery_timeout"`
}

// Retry contains transport-level retry configuration for the HTTP client.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// Platform contains per-platform tuning. Platforms have different
// data-freshness semantics, so TTLs are configured independently.
type Platform struct {
	// Base URL of the platform API.
	BaseURL string `koanf:"base_url"`
	// Cache TTL in seconds.
	CacheTTL int `koanf:"cache_ttl"`
	// Freshness window in seconds before stored stats are considered stale.
	Freshness int `koanf:"freshness"`
	// Outbound request budget per second against the platform API.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// Concurrency contains per-operation-class in-flight caps.
type Concurrency struct {
	Platform int64 `koanf:"platform"`
	Database int64 `koanf:"database"`
	General  int64 `koanf:"general"`
	External int64 `koanf:"external"`
}

// Bulk contains bulk refresh tuning.
type Bulk struct {
	BatchSize  int `koanf:"batch_size"`
	MaxRetries int `koanf:"max_retries"`
	// Delay before each retry in milliseconds, doubled per attempt.
	RetryDelay int `koanf:"retry_delay_ms"`
	// Pause between batches in milliseconds.
	BatchDelay int `koanf:"batch_delay_ms"`
}

// RateLimit configures one endpoint class of the inbound rate limiter.
type RateLimit struct {
	Limit int `koanf:"limit"`
	// Window length in seconds.
	Window int `koanf:"window_seconds"`
}

// Validator contains username validator job configuration.
type Validator struct {
	// Hours between validation sweeps.
	IntervalHours int `koanf:"interval_hours"`
	// Days after which a validation check goes stale.
	RecheckDays int `koanf:"recheck_days"`
}

// Rate limit endpoint classes recognized in the config file.
const (
	RateLimitAuth            = "auth"
	RateLimitPlatformRefresh = "platform_refresh"
	RateLimitRoomOperations  = "room_operations"
	RateLimitMessaging       = "messaging"
	RateLimitAPI             = "api"
)

// Default returns a config with every knob set to its sane default, so the
// config file only needs to override what differs.
func Default() *Config {
	return &Config{
		Debug:  Debug{LogLevel: "info"},
		Server: Server{Host: "127.0.0.1", Port: 8080, RequestTimeout: 15000},
		Redis:  Redis{Host: "127.0.0.1", Port: 6379},
		PostgreSQL: PostgreSQL{
			Host: "127.0.0.1", Port: 5432, User: "postgres", DBName: "algoroom",
			MaxOpenConns: 16, MaxIdleConns: 8, MaxLifetime: 10, MaxIdleTime: 5,
		},
		CircuitBreaker: CircuitBreaker{MaxFailures: 5, FailureThreshold: 10000, RecoveryTimeout: 30000},
		Retry:          Retry{MaxRetries: 3, Delay: 1000, MaxDelay: 5000},
		Platforms: map[string]Platform{
			"leetcode": {
				BaseURL: "https://leetcode.com", CacheTTL: 1800, Freshness: 3600, RequestsPerSecond: 2,
			},
			"github": {
				BaseURL: "https://api.github.com", CacheTTL: 1800, Freshness: 3600, RequestsPerSecond: 2,
			},
			"codeforces": {
				BaseURL: "https://codeforces.com", CacheTTL: 1800, Freshness: 3600, RequestsPerSecond: 2,
			},
		},
		Concurrency: Concurrency{Platform: 5, Database: 10, General: 8, External: 3},
		Bulk:        Bulk{BatchSize: 10, MaxRetries: 2, RetryDelay: 1000, BatchDelay: 500},
		RateLimits: map[string]RateLimit{
			RateLimitAuth:            {Limit: 10, Window: 60},
			RateLimitPlatformRefresh: {Limit: 5, Window: 300},
			RateLimitRoomOperations:  {Limit: 20, Window: 60},
			RateLimitMessaging:       {Limit: 60, Window: 60},
			RateLimitAPI:             {Limit: 100, Window: 60},
		},
		Validator: Validator{IntervalHours: 24, RecheckDays: 7},
	}
}

// LoadConfig loads the configuration file from the search paths, overlaying it
// on the defaults. Missing files are not an error; every option has a default.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".algoroom",
		homeDir + "/.algoroom/config",
		"/etc/algoroom/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/config.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	config := Default()
	if usedConfigPath != "" {
		if err := k.Unmarshal("", config); err != nil {
			return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	return config, usedConfigPath, nil
}

// PlatformFor returns the tuning block for a platform name, falling back to
// defaults for platforms absent from the file.
func (c *Config) PlatformFor(name string) Platform {
	if p, ok := c.Platforms[name]; ok {
		return p
	}
	return Default().Platforms[name]
}

// RateLimitFor returns the rate limit for an endpoint class, falling back to
// the generic API class when the class is not configured.
func (c *Config) RateLimitFor(class string) RateLimit {
	if rl, ok := c.RateLimits[class]; ok {
		return rl
	}
	if rl, ok := c.RateLimits[RateLimitAPI]; ok {
		return rl
	}
	return Default().RateLimits[RateLimitAPI]
}
