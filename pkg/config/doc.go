// Package config provides configuration management for the lobby hub
// server.
//
// This package handles environment variable loading with type-safe parsing,
// applies secure production defaults, and performs extensive validation of
// all configuration values.
//
// # Loading Configuration
//
// Configuration is loaded from environment variables with the HUB_ prefix:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Environment Variables
//
// Server settings:
//   - HUB_SERVER_PORT: HTTP port (default: 8080)
//   - HUB_WEB_DIR: Static file directory (default: "./web")
//   - HUB_LOG_LEVEL: Logging verbosity (default: "info")
//
// Lobby capacity:
//   - HUB_MAX_SESSIONS: Concurrent non-empty session cap (default: 6)
//   - HUB_MAX_MEMBERS_PER_SESSION: Per-session member cap (default: 4)
//   - HUB_DISTRIBUTE_ORPHANED_OBJECTS: Spread PerSession orphans across
//     remaining members instead of collapsing onto one (default: true)
//   - HUB_NAMING_POOL_FILE: optional path to a YAML override for the
//     session naming pool, loaded via LoadNamingPool
//
// Timeouts:
//   - HUB_REQUEST_TIMEOUT: RPC request timeout (default: 30s)
//   - HUB_SHUTDOWN_TIMEOUT: Graceful shutdown deadline (default: 10s)
//
// Security:
//   - HUB_ENABLE_DEV_MODE: Enable development mode (default: true)
//   - HUB_ALLOWED_ORIGINS: CORS allowed origins (comma-separated)
//   - HUB_MAX_REQUEST_SIZE: Maximum request body size (default: 1MB)
//
// Rate limiting:
//   - HUB_RATE_LIMIT_RPS: Requests per second per connection (default: 20)
//   - HUB_RATE_LIMIT_BURST: Burst allowance (default: 40)
//
// Retry policy for WebSocket RPC dispatch (broadcast sends do not read
// these; they retry through integration.NetworkExecutor):
//   - HUB_BROADCAST_RETRY_ENABLED: Wrap each RPC dispatch in retry (default: true)
//   - HUB_BROADCAST_RETRY_MAX_ATTEMPTS: Maximum attempts, including the first (default: 3)
//   - HUB_RETRY_INITIAL_DELAY: First retry delay (default: 100ms)
//   - HUB_RETRY_MAX_DELAY: Maximum retry delay (default: 5s)
//   - HUB_RETRY_BACKOFF_MULTIPLIER: Backoff factor (default: 2.0)
//
// # Validation
//
// All configuration values are validated on load:
//   - Port must be in valid range (1-65535)
//   - Timeouts must meet minimum requirements
//   - Lobby capacity values must be positive
//   - Rate limit values must be positive
//   - Retry configuration must be sensible
//
// # CORS Support
//
// Use OriginAllowed to check WebSocket origins:
//
//	if cfg.OriginAllowed(origin) {
//	    // Allow connection
//	}
//
// In development mode (EnableDevMode=true), all origins are allowed.
//
// # Lobby Options
//
// LobbyOptions converts the loaded configuration into a lobby.RegistryOptions,
// resolving any naming pool override file along the way:
//
//	opts, err := cfg.LobbyOptions()
//	registry := lobby.NewSessionRegistry(opts)
//
// # Retry Configuration
//
// GetRetryConfig returns a retry.RetryConfig for the broadcast retry
// settings, for use directly with the retry package:
//
//	retryConfig := cfg.GetRetryConfig()
//	retrier := retry.NewRetrier(retryConfig)
package config
