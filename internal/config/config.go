package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Backend   BackendConfig
	Wizard    WizardConfig
	RateLimit RateLimitConfig
	App       AppConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration for the submission audit log
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled bool
	URL     string
}

// BackendConfig holds settings for the property management REST API
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Breaker trips after this many consecutive failures
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// WizardConfig holds onboarding session configuration
type WizardConfig struct {
	SessionTTL      time.Duration
	DraftDebounce   time.Duration
	CleanupInterval time.Duration
	MaxUploadBytes  int64
	Currency        string
}

// RateLimitConfig holds rate limits for write endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AppConfig holds application configuration
type AppConfig struct {
	Environment string
	LogLevel    string
	LogFormat   string
}

// New creates a new configuration instance
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnvWithDefault("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvWithDefault("SERVER_PORT", "8090"),
			AllowedOrigins: getEnvAsSliceWithDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBoolWithDefault("DB_ENABLED", true),
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: getEnvWithDefault("DB_PASSWORD", ""),
			Name:     getEnvWithDefault("DB_NAME", "tenant_onboarding"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBoolWithDefault("REDIS_ENABLED", true),
			Host:     getEnvWithDefault("REDIS_HOST", "localhost"),
			Port:     getEnvWithDefault("REDIS_PORT", "6379"),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntWithDefault("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			Enabled: getEnvAsBoolWithDefault("NATS_ENABLED", true),
			URL:     getEnvWithDefault("NATS_URL", "nats://localhost:4222"),
		},
		Backend: BackendConfig{
			BaseURL:         strings.TrimRight(getEnvWithDefault("BACKEND_API_URL", "http://localhost:8080/api"), "/"),
			APIKey:          getEnvWithDefault("BACKEND_API_KEY", ""),
			Timeout:         getEnvAsDurationWithDefault("BACKEND_TIMEOUT", 30*time.Second),
			BreakerFailures: uint32(getEnvAsIntWithDefault("BACKEND_BREAKER_FAILURES", 5)),
			BreakerTimeout:  getEnvAsDurationWithDefault("BACKEND_BREAKER_TIMEOUT", 30*time.Second),
		},
		Wizard: WizardConfig{
			SessionTTL:      getEnvAsDurationWithDefault("WIZARD_SESSION_TTL", 2*time.Hour),
			DraftDebounce:   getEnvAsDurationWithDefault("WIZARD_DRAFT_DEBOUNCE", 300*time.Millisecond),
			CleanupInterval: getEnvAsDurationWithDefault("WIZARD_CLEANUP_INTERVAL", 5*time.Minute),
			MaxUploadBytes:  int64(getEnvAsIntWithDefault("WIZARD_MAX_UPLOAD_BYTES", 10*1024*1024)),
			Currency:        getEnvWithDefault("WIZARD_CURRENCY", "AED"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloatWithDefault("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsIntWithDefault("RATE_LIMIT_BURST", 20),
		},
		App: AppConfig{
			Environment: getEnvWithDefault("APP_ENV", "development"),
			LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
			LogFormat:   getEnvWithDefault("LOG_FORMAT", "json"),
		},
	}
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// getEnvWithDefault gets environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntWithDefault gets environment variable as integer with default fallback
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloatWithDefault gets environment variable as float with default fallback
func getEnvAsFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBoolWithDefault gets environment variable as boolean with default fallback
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDurationWithDefault accepts Go durations ("300ms", "2h")
func getEnvAsDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSliceWithDefault splits a comma separated variable
func getEnvAsSliceWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
