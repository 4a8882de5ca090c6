package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/badvoidstar/astervoids/pkg/integration"
	"github.com/badvoidstar/astervoids/pkg/resilience"
	"github.com/sirupsen/logrus"
)

// HealthStatus represents the overall health status of the server
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Details  interface{}   `json:"details,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Checks    []CheckResult `json:"checks"`
	Version   string        `json:"version,omitempty"`
}

// HealthChecker manages health checks for various system components
type HealthChecker struct {
	checks map[string]func(context.Context) error
	server *RPCServer
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(server *RPCServer) *HealthChecker {
	hc := &HealthChecker{
		checks: make(map[string]func(context.Context) error),
		server: server,
	}

	hc.RegisterCheck("server", hc.checkServer)
	hc.RegisterCheck("session_registry", hc.checkSessionRegistry)
	hc.RegisterCheck("object_registry", hc.checkObjectRegistry)
	hc.RegisterCheck("broadcast_groups", hc.checkBroadcastGroups)

	hc.RegisterCheck("validation_system", hc.checkValidationSystem)
	hc.RegisterCheck("circuit_breakers", hc.checkCircuitBreakers)
	hc.RegisterCheck("metrics_system", hc.checkMetricsSystem)
	hc.RegisterCheck("configuration", hc.checkConfiguration)
	hc.RegisterCheck("performance_monitor", hc.checkPerformanceMonitor)
	hc.RegisterCheck("web_dir", hc.checkWebDir)

	return hc
}

// RegisterCheck adds a new health check with the given name
func (hc *HealthChecker) RegisterCheck(name string, check func(context.Context) error) {
	hc.checks[name] = check
}

// RunHealthChecks executes all registered health checks and returns the results
func (hc *HealthChecker) RunHealthChecks(ctx context.Context) HealthResponse {
	start := time.Now()
	response := HealthResponse{
		Timestamp: start,
		Checks:    make([]CheckResult, 0, len(hc.checks)),
		Version:   "1.0.0",
	}

	overallStatus := HealthStatusHealthy

	for name, check := range hc.checks {
		checkStart := time.Now()
		result := CheckResult{
			Name:     name,
			Duration: 0,
			Status:   HealthStatusHealthy,
		}

		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(checkCtx)
		cancel()

		result.Duration = time.Since(checkStart)

		if err != nil {
			result.Status = HealthStatusUnhealthy
			result.Error = err.Error()
			overallStatus = HealthStatusUnhealthy

			if hc.server.metrics != nil {
				hc.server.metrics.RecordHealthCheck(name, "failure")
			}

			logrus.WithFields(logrus.Fields{
				"check":    name,
				"duration": result.Duration,
				"error":    err,
			}).Error("health check failed")
		} else {
			if hc.server.metrics != nil {
				hc.server.metrics.RecordHealthCheck(name, "success")
			}

			logrus.WithFields(logrus.Fields{
				"check":    name,
				"duration": result.Duration,
			}).Debug("health check passed")
		}

		response.Checks = append(response.Checks, result)
	}

	response.Status = overallStatus
	response.Duration = time.Since(start)

	return response
}

// HealthHandler serves the detailed health check response. A caller may
// narrow the response to a single lobby session with ?session_id=, handy
// for an operator confirming one reported-stuck session is still tracked
// after a deploy, without diffing the full active-session list.
func (hc *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		ctx = context.WithValue(ctx, requestIDKey, reqID)
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	}

	response := hc.RunHealthChecks(ctx)

	if sessionID := GetSessionID(ctx); sessionID != "" && hc.server != nil && hc.server.sessions != nil {
		result := CheckResult{Name: "requested_session", Status: HealthStatusHealthy}
		if !hc.server.sessions.SessionExists(sessionID) {
			result.Status = HealthStatusUnhealthy
			result.Error = fmt.Sprintf("session %q not found", sessionID)
			response.Status = HealthStatusUnhealthy
		}
		response.Checks = append(response.Checks, result)
	}

	var httpStatus int
	switch response.Status {
	case HealthStatusHealthy:
		httpStatus = http.StatusOK
	case HealthStatusDegraded:
		httpStatus = http.StatusOK
	case HealthStatusUnhealthy:
		httpStatus = http.StatusServiceUnavailable
	default:
		httpStatus = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("failed to encode health response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ReadinessHandler for Kubernetes-style readiness probes.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	response := hc.RunHealthChecks(ctx)

	if response.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Not Ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// LivenessHandler for basic server availability.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Alive"))
}

func (hc *HealthChecker) checkServer(ctx context.Context) error {
	if hc.server == nil {
		return fmt.Errorf("server instance is nil")
	}

	select {
	case <-hc.server.done:
		return fmt.Errorf("server is shutting down")
	default:
	}

	return nil
}

func (hc *HealthChecker) checkSessionRegistry(ctx context.Context) error {
	if hc.server == nil || hc.server.sessions == nil {
		return fmt.Errorf("session registry is not initialized")
	}

	// Exercising ListActiveSessions confirms the registry is reachable
	// under its own lock without mutating state.
	snapshot := hc.server.sessions.ListActiveSessions()
	if snapshot.MaxSessions <= 0 {
		return fmt.Errorf("session registry reports non-positive capacity")
	}

	return nil
}

func (hc *HealthChecker) checkObjectRegistry(ctx context.Context) error {
	if hc.server == nil || hc.server.objects == nil {
		return fmt.Errorf("object registry is not initialized")
	}

	return nil
}

func (hc *HealthChecker) checkBroadcastGroups(ctx context.Context) error {
	if hc.server == nil || hc.server.groups == nil {
		return fmt.Errorf("broadcast group registry is not initialized")
	}

	return nil
}

func (hc *HealthChecker) checkValidationSystem(ctx context.Context) error {
	if hc.server == nil || hc.server.validator == nil {
		return fmt.Errorf("validation system is not initialized")
	}

	err := hc.server.validator.ValidateRPCRequest(string(MethodGetActiveSessions), map[string]interface{}{}, 16)
	if err != nil {
		return fmt.Errorf("validation system test failed: %v", err)
	}

	return nil
}

func (hc *HealthChecker) checkCircuitBreakers(ctx context.Context) error {
	cbManager := resilience.GetGlobalCircuitBreakerManager()
	if cbManager == nil {
		return fmt.Errorf("circuit breaker manager is not initialized")
	}

	stats := cbManager.GetAllStats()
	if stats == nil {
		return fmt.Errorf("unable to retrieve circuit breaker statistics")
	}

	return nil
}

func (hc *HealthChecker) checkMetricsSystem(ctx context.Context) error {
	if hc.server == nil || hc.server.metrics == nil {
		return fmt.Errorf("metrics system is not initialized")
	}

	return nil
}

func (hc *HealthChecker) checkConfiguration(ctx context.Context) error {
	if hc.server == nil || hc.server.config == nil {
		return fmt.Errorf("configuration is not initialized")
	}

	if hc.server.config.ServerPort == 0 {
		return fmt.Errorf("server port not configured")
	}

	return nil
}

func (hc *HealthChecker) checkPerformanceMonitor(ctx context.Context) error {
	if hc.server == nil || hc.server.perfMonitor == nil {
		return fmt.Errorf("performance monitor is not initialized")
	}

	return nil
}

// checkWebDir confirms the static web client directory configured at
// startup is still reachable, through the file system circuit breaker so
// a flaky mount degrades this one check instead of spamming the health
// endpoint's logs on every poll.
func (hc *HealthChecker) checkWebDir(ctx context.Context) error {
	if hc.server == nil || hc.server.config == nil {
		return fmt.Errorf("configuration is not initialized")
	}

	return integration.ExecuteFileSystemOperation(ctx, func(ctx context.Context) error {
		info, err := os.Stat(hc.server.config.WebDir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("web dir %q is not a directory", hc.server.config.WebDir)
		}
		return nil
	})
}
