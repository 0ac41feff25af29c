package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the session hub.
type Config struct {
	// Server
	Port     string `yaml:"port"`
	Host     string `yaml:"host"`
	LogLevel string `yaml:"log_level"`

	// Kratos
	KratosPublicURL string        `yaml:"kratos_public_url"`
	KratosAdminURL  string        `yaml:"kratos_admin_url"`
	KratosTimeout   time.Duration `yaml:"kratos_timeout"`

	// Initial session token, if the host already holds one.
	SessionToken string `yaml:"-"`

	// Backend profile API
	BackendBaseURL string        `yaml:"backend_base_url"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`

	// Profile cache
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	StorageBackend string        `yaml:"storage_backend"`
	StateDir       string        `yaml:"state_dir"`
	RedisURL       string        `yaml:"redis_url"`

	// Lifecycle
	RetryAttempts       int           `yaml:"retry_attempts"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	EarlyRefreshWindow  time.Duration `yaml:"early_refresh_window"`
	SessionPollInterval time.Duration `yaml:"session_poll_interval"`

	// OAuth
	OAuthReturnTo string `yaml:"oauth_return_to"`
}

// Load reads configuration from environment variables, with an optional
// YAML file overlay named by CONFIG_FILE. Environment values win.
func Load() (*Config, error) {
	config := &Config{}

	// File overlay first so env can override it.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(config, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Server configuration
	config.Port = getEnvOrDefault("PORT", defaultString(config.Port, "9600"))
	config.Host = getEnvOrDefault("HOST", defaultString(config.Host, "0.0.0.0"))
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", defaultString(config.LogLevel, "info"))

	// Kratos configuration
	config.KratosPublicURL = getEnvOrDefault("KRATOS_PUBLIC_URL", config.KratosPublicURL)
	if config.KratosPublicURL == "" {
		return nil, fmt.Errorf("KRATOS_PUBLIC_URL is required")
	}

	config.KratosAdminURL = getEnvOrDefault("KRATOS_ADMIN_URL", config.KratosAdminURL)
	if config.KratosAdminURL == "" {
		return nil, fmt.Errorf("KRATOS_ADMIN_URL is required")
	}

	config.SessionToken = os.Getenv("SESSION_TOKEN")

	// Backend profile API
	config.BackendBaseURL = getEnvOrDefault("BACKEND_BASE_URL", config.BackendBaseURL)
	if config.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	// Durations
	var err error
	if config.KratosTimeout, err = durationEnv("KRATOS_TIMEOUT", config.KratosTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if config.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", config.FetchTimeout, 15*time.Second); err != nil {
		return nil, err
	}
	if config.CacheTTL, err = durationEnv("CACHE_TTL", config.CacheTTL, 10*time.Minute); err != nil {
		return nil, err
	}
	if config.RetryBackoff, err = durationEnv("RETRY_BACKOFF", config.RetryBackoff, 2*time.Second); err != nil {
		return nil, err
	}
	if config.RefreshInterval, err = durationEnv("REFRESH_INTERVAL", config.RefreshInterval, 10*time.Minute); err != nil {
		return nil, err
	}
	if config.EarlyRefreshWindow, err = durationEnv("EARLY_REFRESH_WINDOW", config.EarlyRefreshWindow, 5*time.Minute); err != nil {
		return nil, err
	}
	if config.SessionPollInterval, err = durationEnv("SESSION_POLL_INTERVAL", config.SessionPollInterval, 30*time.Second); err != nil {
		return nil, err
	}

	// Retry attempts
	attemptsStr := os.Getenv("RETRY_ATTEMPTS")
	if attemptsStr != "" {
		attempts, err := strconv.Atoi(attemptsStr)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_ATTEMPTS: %w", err)
		}
		config.RetryAttempts = attempts
	} else if config.RetryAttempts == 0 {
		config.RetryAttempts = 1
	}

	// Storage
	config.StorageBackend = getEnvOrDefault("STORAGE_BACKEND", defaultString(config.StorageBackend, "file"))
	config.StateDir = getEnvOrDefault("STATE_DIR", defaultString(config.StateDir, "./data"))
	config.RedisURL = getEnvOrDefault("REDIS_URL", config.RedisURL)

	config.OAuthReturnTo = getEnvOrDefault("OAUTH_RETURN_TO", defaultString(config.OAuthReturnTo, "/"))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port: %s", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535: %s", c.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	switch c.StorageBackend {
	case "file":
		if c.StateDir == "" {
			return fmt.Errorf("STATE_DIR is required for the file storage backend")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis storage backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be file or redis)", c.StorageBackend)
	}

	if c.CacheTTL < time.Second {
		return fmt.Errorf("cache TTL must be at least 1 second, got: %v", c.CacheTTL)
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must not be negative, got: %d", c.RetryAttempts)
	}

	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh interval must be at least 1 second, got: %v", c.RefreshInterval)
	}

	return nil
}

// Helper functions

func loadFile(config *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, config)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultString(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

func durationEnv(key string, current, fallback time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return parsed, nil
	}
	if current != 0 {
		return current, nil
	}
	return fallback, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
