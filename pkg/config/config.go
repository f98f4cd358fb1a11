package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Feed      FeedConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration. An empty URL selects the
// in-memory store with seeded demo data instead of PostgreSQL.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the change-event transport configuration
type RedisConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// FeedConfig holds feed and notification tuning
type FeedConfig struct {
	TrendingThreshold int           // minimum likes_count for a trending post
	TrendingWindow    time.Duration // trailing recency window
	TrendingLimit     int           // page size of the trending view
	PollInterval      time.Duration // notification refresh cadence
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	// Load from environment
	viper.SetEnvPrefix("HONNE")
	viper.AutomaticEnv()

	// Load from config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.honne")
	viper.AddConfigPath("/etc/honne")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL: getString("database_url", ""),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8080),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Feed: FeedConfig{
			TrendingThreshold: getInt("trending_threshold", 20),
			TrendingWindow:    getDuration("trending_window", 24*time.Hour),
			TrendingLimit:     getInt("trending_limit", 5),
			PollInterval:      getDuration("notify_poll_interval", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getString("log_level", "INFO"),
			Format: getString("log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", true),
			JaegerURL:         getString("jaeger_url", "http://localhost:14268/api/traces"),
			PrometheusEnabled: getBool("prometheus_enabled", true),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "honne-feedd"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("database_url", "")
	viper.SetDefault("redis_url", "")
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("trending_threshold", 20)
	viper.SetDefault("trending_window", 24*time.Hour)
	viper.SetDefault("trending_limit", 5)
	viper.SetDefault("notify_poll_interval", 5*time.Minute)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("telemetry_enabled", true)
	viper.SetDefault("prometheus_enabled", true)
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "honne-feedd")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("HONNE_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("HONNE_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("HONNE_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := os.Getenv("HONNE_" + toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

func toEnvKey(key string) string {
	// Convert snake_case to UPPER_SNAKE_CASE
	result := ""
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result += "_"
		}
		if r == '-' || r == '_' {
			result += "_"
		} else {
			result += string(r)
		}
	}
	return result
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feed.TrendingThreshold < 0 {
		return fmt.Errorf("trending_threshold must not be negative")
	}
	if c.Feed.TrendingWindow <= 0 {
		return fmt.Errorf("trending_window must be positive")
	}
	if c.Feed.TrendingLimit <= 0 || c.Feed.TrendingLimit > 100 {
		return fmt.Errorf("trending_limit must be between 1 and 100")
	}
	if c.Feed.PollInterval < time.Second {
		return fmt.Errorf("notify_poll_interval must be at least one second")
	}
	return nil
}
