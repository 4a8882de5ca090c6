// Package resilience implements the circuit breaker pattern for fault tolerance.
//
// This package protects the hub's three external-facing dependencies --
// the web client directory on disk, a connection's WebSocket socket, and
// an operator-supplied naming pool override file -- preventing a flaky
// one of them from cascading into the others by failing fast once a
// dependency is clearly unhealthy.
//
// # Circuit Breaker Pattern
//
// A circuit breaker operates in three states:
//
//   - Closed: Normal operation, all requests pass through
//   - Open: Service failing, requests fail immediately (fast-fail)
//   - HalfOpen: Testing recovery with limited requests
//
// State transitions:
//
//	Closed → Open: After MaxFailures consecutive failures
//	Open → HalfOpen: After Timeout period expires
//	HalfOpen → Closed: After successful test requests
//	HalfOpen → Open: If test requests fail
//
// # Creating Circuit Breakers
//
// Create a circuit breaker with custom configuration:
//
//	config := resilience.CircuitBreakerConfig{
//	    Name:        "naming-pool-override",
//	    MaxFailures: 5,
//	    Timeout:     30 * time.Second,
//	    MaxRequests: 3,
//	}
//	cb := resilience.NewCircuitBreaker(config)
//
// # Executing Protected Operations
//
// Wrap operations with circuit breaker protection:
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return loadOverrideFile(ctx)
//	})
//	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
//	    // override source is down, fall back to the built-in pool
//	}
//
// # Managing Multiple Breakers
//
// Use CircuitBreakerManager for multiple dependencies:
//
//	manager := resilience.GetGlobalCircuitBreakerManager()
//	cb := manager.GetOrCreate("web_dir", &resilience.FileSystemConfig)
//	stats := manager.GetAllStats()
//
// # Pre-configured Breakers
//
// Global convenience functions with sensible defaults, each wired to one
// of this hub's own dependencies:
//
//	// Static web client directory, checked on every /healthz poll
//	// (pkg/server/health.go's checkWebDir).
//	err := resilience.ExecuteWithFileSystemCircuitBreaker(ctx, statWebDir)
//
//	// Per-connection broadcast delivery (pkg/server/groups.go's sendTo).
//	err := resilience.ExecuteWithWebSocketCircuitBreaker(ctx, deliverNotification)
//
//	// Naming pool override file (pkg/config/loader.go's LoadNamingPool).
//	err := resilience.ExecuteWithConfigLoaderCircuitBreaker(ctx, loadOverride)
//
// # Monitoring
//
// Query circuit breaker state and statistics:
//
//	state := cb.GetState()       // StateClosed, StateOpen, or StateHalfOpen
//	stats := cb.GetStats()       // Failure counts, request counts, timestamps
//
// # Thread Safety
//
// All circuit breaker operations are thread-safe via internal mutex protection.
// Multiple goroutines can safely execute through the same breaker.
package resilience
