// Package retry provides configurable retry mechanisms with exponential backoff.
//
// This package handles transient failures by automatically retrying operations
// with configurable delays, backoff strategies, and jitter to prevent thundering
// herd problems. pkg/integration pairs a Retrier with a circuit breaker for
// the hub's runtime dependencies; startup code in cmd/hubserver also uses the
// bare retry policies (see "Bare Retry Without a Circuit Breaker" below).
//
// # Configuration
//
// Create a Retrier with a custom retry policy:
//
//	config := retry.RetryConfig{
//	    MaxAttempts:       5,
//	    InitialDelay:      100 * time.Millisecond,
//	    MaxDelay:          30 * time.Second,
//	    BackoffMultiplier: 2.0,
//	    JitterMaxPercent:  25,
//	}
//	retrier := retry.NewRetrier(config)
//
// # Executing with Retry
//
// Wrap operations with automatic retry on failure:
//
//	err := retrier.Execute(ctx, func(ctx context.Context) error {
//	    return os.Stat(webDir)
//	})
//
// For operations that produce a result alongside the error, Execute itself is
// built on ExecuteWithResult and discards the result; call ExecuteWithResult
// directly when the caller needs it:
//
//	err := retrier.ExecuteWithResult(ctx, func(ctx context.Context) (interface{}, error) {
//	    return nil, deliverNotification(ctx)
//	})
//
// # Backoff Strategy
//
// Delays increase exponentially between retries:
//
//	Attempt 1: InitialDelay (100ms)
//	Attempt 2: InitialDelay * BackoffMultiplier (200ms)
//	Attempt 3: Previous * BackoffMultiplier (400ms)
//	...up to MaxDelay
//
// Jitter is applied to prevent synchronized retries across clients.
//
// # Pre-configured Policies
//
// RetryConfig constructors cover this hub's three external-facing
// dependencies; pkg/integration wraps each in a Retrier alongside a matching
// circuit breaker:
//
//	retry.DefaultRetryConfig()     // 3 attempts, 100ms initial -- integration.ConfigLoaderExecutor
//	retry.FileSystemRetryConfig()  // 3 attempts, 50ms initial, 5s max -- integration.FileSystemExecutor
//	retry.NetworkRetryConfig()     // 5 attempts, 200ms initial, 60s max -- integration.NetworkExecutor
//
// # Bare Retry Without a Circuit Breaker
//
// Startup runs once per process, before a circuit breaker has accumulated
// any state worth tripping on, so cmd/hubserver bypasses pkg/integration and
// retries directly against the package-level retriers:
//
//	// Reading configuration (cmd/hubserver/main.go's loadAndConfigureSystem).
//	err := retry.Execute(ctx, func(ctx context.Context) error { return loadConfig() })
//
//	// Binding the listener port (cmd/hubserver/main.go's initializeServer).
//	err := retry.ExecuteNetwork(ctx, func(ctx context.Context) error { return bindListener() })
//
//	// Confirming the web dir exists before serving (same function).
//	err := retry.ExecuteFileSystem(ctx, func(ctx context.Context) error { return statWebDir() })
//
// # Retryable Errors
//
// Every non-nil error triggers a retry. RetryableErrors can list specific
// errors, but the list does not narrow what is retried -- errors not on it
// are retried as well:
//
//	config.RetryableErrors = []error{
//	    context.DeadlineExceeded,
//	}
//
// # Context Support
//
// Retries respect context cancellation and deadlines:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	err := retrier.Execute(ctx, operation)
//
// # Logging
//
// Retry attempts are logged with structured context including attempt number,
// delay duration, and error details for debugging transient failures.
package retry
