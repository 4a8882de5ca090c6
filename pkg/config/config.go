// Package config provides configuration management for the lobby hub server.
// It handles environment variable loading, validation, and provides secure
// defaults for production deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/badvoidstar/astervoids/pkg/lobby"
	"github.com/badvoidstar/astervoids/pkg/retry"

	"github.com/sirupsen/logrus"
)

// Config represents the server configuration with environment variable support.
// All configuration values can be set via environment variables or will use
// secure defaults appropriate for production deployment.
// Config is thread-safe; all field access should be done through getter methods
// when used concurrently, or by holding the mutex directly.
type Config struct {
	// mu provides thread-safe access to configuration fields when the Config
	// instance is shared across goroutines. Use RLock for reads and Lock for writes.
	mu sync.RWMutex `json:"-"`

	// ServerPort is the port the HTTP server will listen on
	ServerPort int `json:"server_port"`

	// WebDir is the directory containing static web files
	WebDir string `json:"web_dir"`

	// LogLevel controls the logging verbosity (debug, info, warn, error)
	LogLevel string `json:"log_level"`

	// AllowedOrigins is a list of allowed WebSocket origins for CORS
	AllowedOrigins []string `json:"allowed_origins"`

	// MaxRequestSize is the maximum size of incoming requests in bytes
	MaxRequestSize int64 `json:"max_request_size"`

	// EnableDevMode enables development-friendly settings (broader CORS, verbose logging)
	EnableDevMode bool `json:"enable_dev_mode"`

	// RequestTimeout is the maximum duration for processing requests
	RequestTimeout time.Duration `json:"request_timeout"`

	// Lobby domain configuration

	// MaxSessions caps the number of concurrently non-empty sessions.
	MaxSessions int `json:"max_sessions"`

	// MaxMembersPerSession caps membership of a single session.
	MaxMembersPerSession int `json:"max_members_per_session"`

	// DistributeOrphanedObjects controls whether a departing member's
	// PerSession objects round-robin across remaining members or collapse
	// onto a single one.
	DistributeOrphanedObjects bool `json:"distribute_orphaned_objects"`

	// NamingPoolFile, when set, overrides the built-in session-name
	// candidate list via config.LoadNamingPool.
	NamingPoolFile string `json:"naming_pool_file"`

	// Performance monitoring configuration

	// EnableProfiling enables pprof profiling endpoints (/debug/pprof)
	EnableProfiling bool `json:"enable_profiling"`

	// ProfilingPort is loaded from HUB_PROFILING_PORT but nothing reads it:
	// when profiling is enabled, pprof is served on the main server port.
	ProfilingPort int `json:"profiling_port"`

	// MetricsInterval is how often performance metrics are collected
	MetricsInterval time.Duration `json:"metrics_interval"`

	// AlertingEnabled enables performance alerting
	AlertingEnabled bool `json:"alerting_enabled"`

	// AlertingInterval is how often performance alerts are checked
	AlertingInterval time.Duration `json:"alerting_interval"`

	// AlertWebhookURL, when set, delivers alerts to this HTTP endpoint
	// instead of only logging them. See server.WebhookAlertHandler.
	AlertWebhookURL string `json:"alert_webhook_url"`

	// Rate limiting configuration

	// RateLimitEnabled enables rate limiting middleware
	RateLimitEnabled bool `json:"rate_limit_enabled"`

	// RateLimitRequestsPerSecond is the number of requests allowed per second per IP
	RateLimitRequestsPerSecond float64 `json:"rate_limit_requests_per_second"`

	// RateLimitBurst is the maximum number of requests allowed in a burst per IP
	RateLimitBurst int `json:"rate_limit_burst"`

	// RateLimitCleanupInterval is how often to clean up expired rate limiters
	RateLimitCleanupInterval time.Duration `json:"rate_limit_cleanup_interval"`

	// Retry configuration -- server.NewTimeoutConfig turns these fields into
	// the retry policy wrapped around each WebSocket RPC dispatch. Broadcast
	// fan-out sends do not read them; they retry through
	// integration.NetworkExecutor's fixed policy.

	// BroadcastRetryEnabled enables retry around each WebSocket RPC dispatch.
	BroadcastRetryEnabled bool `json:"broadcast_retry_enabled"`

	// BroadcastRetryMaxAttempts is the maximum number of retry attempts (including initial attempt)
	BroadcastRetryMaxAttempts int `json:"broadcast_retry_max_attempts"`

	// RetryInitialDelay is the initial delay before the first retry
	RetryInitialDelay time.Duration `json:"retry_initial_delay"`

	// RetryMaxDelay is the maximum delay between retries
	RetryMaxDelay time.Duration `json:"retry_max_delay"`

	// RetryBackoffMultiplier is the multiplier for exponential backoff (typically 2.0)
	RetryBackoffMultiplier float64 `json:"retry_backoff_multiplier"`

	// RetryJitterPercent is the maximum percentage of jitter to add (0-100)
	RetryJitterPercent int `json:"retry_jitter_percent"`

	// Server lifecycle timeouts

	// ShutdownTimeout is the maximum duration for graceful server shutdown
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// ShutdownGracePeriod is the grace period after shutdown before forcing exit
	ShutdownGracePeriod time.Duration `json:"shutdown_grace_period"`
}

// Load creates a new Config instance by reading from environment variables
// and applying secure defaults. It validates all configuration values and
// returns an error if any required values are missing or invalid.
func Load() (*Config, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"package":  "config",
	}).Debug("entering Load")

	config := &Config{
		// Secure defaults for production deployment
		ServerPort:     getEnvAsInt("HUB_SERVER_PORT", 8080),
		WebDir:         getEnvAsString("HUB_WEB_DIR", "./web"),
		LogLevel:       getEnvAsString("HUB_LOG_LEVEL", "info"),
		AllowedOrigins: getEnvAsStringSlice("HUB_ALLOWED_ORIGINS", []string{}),
		MaxRequestSize: getEnvAsInt64("HUB_MAX_REQUEST_SIZE", 1*1024*1024), // 1MB default
		EnableDevMode:  getEnvAsBool("HUB_ENABLE_DEV_MODE", true),         // Default to dev mode for easier setup
		RequestTimeout: getEnvAsDuration("HUB_REQUEST_TIMEOUT", 30*time.Second),

		// Lobby domain defaults, mirroring lobby.DefaultRegistryOptions
		MaxSessions:               getEnvAsInt("HUB_MAX_SESSIONS", 6),
		MaxMembersPerSession:      getEnvAsInt("HUB_MAX_MEMBERS_PER_SESSION", 4),
		DistributeOrphanedObjects: getEnvAsBool("HUB_DISTRIBUTE_ORPHANED_OBJECTS", true),
		NamingPoolFile:            getEnvAsString("HUB_NAMING_POOL_FILE", ""),

		// Performance monitoring defaults
		EnableProfiling:  getEnvAsBool("HUB_ENABLE_PROFILING", false),               // Disabled by default for security
		ProfilingPort:    getEnvAsInt("HUB_PROFILING_PORT", 0),                      // Not read; pprof shares the main server port
		MetricsInterval:  getEnvAsDuration("HUB_METRICS_INTERVAL", 30*time.Second),  // Collect metrics every 30s
		AlertingEnabled:  getEnvAsBool("HUB_ALERTING_ENABLED", true),                // Enable alerting by default
		AlertingInterval: getEnvAsDuration("HUB_ALERTING_INTERVAL", 30*time.Second), // Check alerts every 30s
		AlertWebhookURL:  getEnvAsString("HUB_ALERT_WEBHOOK_URL", ""),

		// Rate limiting defaults
		RateLimitEnabled:           getEnvAsBool("HUB_RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSecond: getEnvAsFloat64("HUB_RATE_LIMIT_RPS", 20),
		RateLimitBurst:             getEnvAsInt("HUB_RATE_LIMIT_BURST", 40),
		RateLimitCleanupInterval:   getEnvAsDuration("HUB_RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		// Broadcast retry defaults
		BroadcastRetryEnabled:     getEnvAsBool("HUB_BROADCAST_RETRY_ENABLED", true),
		BroadcastRetryMaxAttempts: getEnvAsInt("HUB_BROADCAST_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay:         getEnvAsDuration("HUB_RETRY_INITIAL_DELAY", 100*time.Millisecond),
		RetryMaxDelay:             getEnvAsDuration("HUB_RETRY_MAX_DELAY", 5*time.Second),
		RetryBackoffMultiplier:    getEnvAsFloat64("HUB_RETRY_BACKOFF_MULTIPLIER", 2.0),
		RetryJitterPercent:        getEnvAsInt("HUB_RETRY_JITTER_PERCENT", 10),

		// Server lifecycle timeout defaults
		ShutdownTimeout:     getEnvAsDuration("HUB_SHUTDOWN_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: getEnvAsDuration("HUB_SHUTDOWN_GRACE_PERIOD", 1*time.Second),
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Load",
		"package":      "config",
		"server_port":  config.ServerPort,
		"dev_mode":     config.EnableDevMode,
		"log_level":    config.LogLevel,
		"max_sessions": config.MaxSessions,
	}).Debug("configuration loaded, starting validation")

	if err := config.validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"package":  "config",
			"error":    err,
		}).Error("configuration validation failed")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Load",
		"package":     "config",
		"server_port": config.ServerPort,
		"dev_mode":    config.EnableDevMode,
		"log_level":   config.LogLevel,
	}).Debug("exiting Load - configuration successfully loaded and validated")

	return config, nil
}

// validate checks that all configuration values are valid and consistent.
func (c *Config) validate() error {
	if err := c.validateServerSettings(); err != nil {
		return err
	}

	if err := c.validateTimeouts(); err != nil {
		return err
	}

	if err := c.validateSecuritySettings(); err != nil {
		return err
	}

	if err := c.validateLobbySettings(); err != nil {
		return err
	}

	if err := c.validateRateLimitConfig(); err != nil {
		return err
	}

	if err := c.validateRetryConfig(); err != nil {
		return err
	}

	return nil
}

// validateServerSettings checks server port and log level configuration.
func (c *Config) validateServerSettings() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.ServerPort)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.LogLevel) == level {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("log level must be one of %v, got %s", validLogLevels, c.LogLevel)
	}

	return nil
}

// validateTimeouts ensures timeout values meet minimum requirements.
func (c *Config) validateTimeouts() error {
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request timeout must be at least 1 second, got %v", c.RequestTimeout)
	}

	return nil
}

// validateSecuritySettings checks security-related configuration.
func (c *Config) validateSecuritySettings() error {
	if c.MaxRequestSize < 1024 { // 1KB minimum
		return fmt.Errorf("max request size must be at least 1024 bytes, got %d", c.MaxRequestSize)
	}

	// In production mode, require explicit origin allowlist
	if !c.EnableDevMode && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed origins must be specified when dev mode is disabled")
	}

	return nil
}

// validateLobbySettings ensures the lobby capacity knobs are usable.
func (c *Config) validateLobbySettings() error {
	if c.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be at least 1, got %d", c.MaxSessions)
	}
	if c.MaxMembersPerSession < 1 {
		return fmt.Errorf("max members per session must be at least 1, got %d", c.MaxMembersPerSession)
	}
	return nil
}

// validateRateLimitConfig ensures rate limiting parameters are valid when enabled.
func (c *Config) validateRateLimitConfig() error {
	if c.RateLimitEnabled {
		if c.RateLimitRequestsPerSecond <= 0 {
			return fmt.Errorf("rate limit requests per second must be greater than 0 when rate limiting is enabled")
		}
		if c.RateLimitBurst <= 0 {
			return fmt.Errorf("rate limit burst must be greater than 0 when rate limiting is enabled")
		}
	}

	return nil
}

// validateRetryConfig ensures broadcast retry policy parameters are valid when enabled.
func (c *Config) validateRetryConfig() error {
	if c.BroadcastRetryEnabled {
		if c.BroadcastRetryMaxAttempts < 1 {
			return fmt.Errorf("broadcast retry max attempts must be at least 1 when retry is enabled")
		}
		if c.RetryInitialDelay < 0 {
			return fmt.Errorf("retry initial delay must be non-negative when retry is enabled")
		}
		if c.RetryMaxDelay < c.RetryInitialDelay {
			return fmt.Errorf("retry max delay must be greater than or equal to initial delay when retry is enabled")
		}
		if c.RetryBackoffMultiplier <= 1.0 {
			return fmt.Errorf("retry backoff multiplier must be greater than 1.0 when retry is enabled")
		}
		if c.RetryJitterPercent < 0 || c.RetryJitterPercent > 100 {
			return fmt.Errorf("retry jitter percent must be between 0 and 100 when retry is enabled")
		}
	}

	return nil
}

// OriginAllowed checks if the given origin is allowed for WebSocket connections.
// In development mode, all origins are allowed. In production mode, only explicitly
// allowed origins are permitted. This method is thread-safe.
func (c *Config) OriginAllowed(origin string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.EnableDevMode {
		return true
	}

	for _, allowed := range c.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// GetRetryConfig creates a retry.RetryConfig from the broadcast retry
// settings. Nothing in the hub calls it; server.NewTimeoutConfig builds
// its own policy from the same fields.
func (c *Config) GetRetryConfig() retry.RetryConfig {
	return retry.RetryConfig{
		MaxAttempts:       c.BroadcastRetryMaxAttempts,
		InitialDelay:      c.RetryInitialDelay,
		MaxDelay:          c.RetryMaxDelay,
		BackoffMultiplier: c.RetryBackoffMultiplier,
		JitterMaxPercent:  c.RetryJitterPercent,
		RetryableErrors:   []error{}, // Will use default error classification
	}
}

// LobbyOptions builds a lobby.RegistryOptions from the configuration,
// loading a NamingPoolFile override if one was set.
func (c *Config) LobbyOptions() (lobby.RegistryOptions, error) {
	opts := lobby.RegistryOptions{
		MaxSessions:               c.MaxSessions,
		MaxMembersPerSession:      c.MaxMembersPerSession,
		DistributeOrphanedObjects: c.DistributeOrphanedObjects,
	}

	if c.NamingPoolFile == "" {
		return opts, nil
	}

	names, err := LoadNamingPool(c.NamingPoolFile)
	if err != nil {
		return lobby.RegistryOptions{}, fmt.Errorf("loading naming pool override: %w", err)
	}
	opts.NamingPoolOverride = names
	return opts, nil
}

// Helper functions for environment variable parsing with type safety and defaults

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
