package server

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds all Prometheus metrics for the lobby hub server.
type Metrics struct {
	// HTTP and RPC metrics
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec

	// WebSocket metrics
	activeConnections prometheus.Gauge
	wsConnections     *prometheus.CounterVec
	wsMessages        *prometheus.CounterVec

	// Lobby domain metrics
	activeSessions  prometheus.Gauge
	activeMembers   prometheus.Gauge
	activeObjects   prometheus.Gauge
	rpcInvocations  *prometheus.CounterVec
	broadcastEvents *prometheus.CounterVec

	// Runtime metrics
	memoryUsageBytes prometheus.Gauge
	goroutinesActive prometheus.Gauge
	heapObjects      prometheus.Gauge
	stackInUseBytes  prometheus.Gauge

	// System metrics
	serverStartTime prometheus.Gauge
	healthChecks    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_http_requests_total",
				Help: "Total number of HTTP requests processed by method and status",
			},
			[]string{"method", "endpoint", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		requestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_websocket_connections_active",
				Help: "Number of active WebSocket connections",
			},
		),

		wsConnections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_websocket_connections_total",
				Help: "Total number of WebSocket connections by type",
			},
			[]string{"type"}, // "connected", "disconnected", "failed"
		),

		wsMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_websocket_messages_total",
				Help: "Total number of WebSocket messages by direction and type",
			},
			[]string{"direction", "type"},
		),

		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_sessions_active",
				Help: "Number of active lobby sessions",
			},
		),

		activeMembers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_members_active",
				Help: "Number of connected members across all sessions",
			},
		),

		activeObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_objects_active",
				Help: "Number of live shared objects across all sessions",
			},
		),

		rpcInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_rpc_invocations_total",
				Help: "Total number of lobby RPC invocations by method and outcome",
			},
			[]string{"method", "outcome"}, // outcome: "ok", "error"
		),

		broadcastEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_broadcast_events_total",
				Help: "Total number of broadcast notifications emitted by event name",
			},
			[]string{"event"},
		),

		memoryUsageBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_memory_usage_bytes",
				Help: "Current heap allocation in bytes",
			},
		),

		goroutinesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_goroutines_active",
				Help: "Current number of goroutines",
			},
		),

		heapObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_heap_objects",
				Help: "Current number of allocated heap objects",
			},
		),

		stackInUseBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_stack_in_use_bytes",
				Help: "Current stack memory in use, in bytes",
			},
		),

		serverStartTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_server_start_time_seconds",
				Help: "Unix timestamp when the server started",
			},
		),

		healthChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_health_checks_total",
				Help: "Total number of health checks by name and status",
			},
			[]string{"check_name", "status"},
		),

		registry: registry,
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.requestSize,
		m.responseSize,
		m.activeConnections,
		m.wsConnections,
		m.wsMessages,
		m.activeSessions,
		m.activeMembers,
		m.activeObjects,
		m.rpcInvocations,
		m.broadcastEvents,
		m.memoryUsageBytes,
		m.goroutinesActive,
		m.heapObjects,
		m.stackInUseBytes,
		m.serverStartTime,
		m.healthChecks,
	)

	m.serverStartTime.SetToCurrentTime()

	return m
}

// GetHandler returns an HTTP handler for exposing metrics.
func (m *Metrics) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	status := strconv.Itoa(statusCode)

	m.requestCount.WithLabelValues(method, endpoint, status).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())

	if requestSize > 0 {
		m.requestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		m.responseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
	}
}

// RecordWebSocketConnection records WebSocket connection events.
func (m *Metrics) RecordWebSocketConnection(connectionType string) {
	m.wsConnections.WithLabelValues(connectionType).Inc()

	switch connectionType {
	case "connected":
		m.activeConnections.Inc()
	case "disconnected":
		m.activeConnections.Dec()
	}
}

// RecordWebSocketMessage records WebSocket message events.
func (m *Metrics) RecordWebSocketMessage(direction, messageType string) {
	m.wsMessages.WithLabelValues(direction, messageType).Inc()
}

// RecordRPCInvocation records a lobby RPC call outcome.
func (m *Metrics) RecordRPCInvocation(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rpcInvocations.WithLabelValues(method, outcome).Inc()
}

// RecordBroadcastEvent records an outgoing broadcast notification.
func (m *Metrics) RecordBroadcastEvent(event EventName) {
	m.broadcastEvents.WithLabelValues(string(event)).Inc()
}

// UpdateActiveSessions updates the active sessions gauge.
func (m *Metrics) UpdateActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// UpdateActiveMembers updates the active members gauge.
func (m *Metrics) UpdateActiveMembers(count int) {
	m.activeMembers.Set(float64(count))
}

// UpdateActiveObjects updates the active objects gauge.
func (m *Metrics) UpdateActiveObjects(count int) {
	m.activeObjects.Set(float64(count))
}

// UpdateMemoryUsage refreshes the heap allocation gauge from runtime.MemStats.
func (m *Metrics) UpdateMemoryUsage() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.memoryUsageBytes.Set(float64(stats.HeapAlloc))
}

// UpdateGoroutinesCount refreshes the goroutine count gauge.
func (m *Metrics) UpdateGoroutinesCount() {
	m.goroutinesActive.Set(float64(runtime.NumGoroutine()))
}

// UpdateHeapObjects refreshes the live heap object count gauge.
func (m *Metrics) UpdateHeapObjects() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.heapObjects.Set(float64(stats.HeapObjects))
}

// UpdateStackInUse refreshes the in-use stack memory gauge.
func (m *Metrics) UpdateStackInUse() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.stackInUseBytes.Set(float64(stats.StackInuse))
}

// RecordHealthCheck records health check results.
func (m *Metrics) RecordHealthCheck(checkName, status string) {
	m.healthChecks.WithLabelValues(checkName, status).Inc()
}

// MetricsMiddleware provides HTTP middleware for recording request metrics.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		var requestSize int64
		if r.ContentLength > 0 {
			requestSize = r.ContentLength
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		endpoint := sanitizeEndpoint(r.URL.Path)

		m.RecordHTTPRequest(
			r.Method,
			endpoint,
			recorder.statusCode,
			duration,
			requestSize,
			recorder.responseSize,
		)

		logrus.WithFields(logrus.Fields{
			"method":        r.Method,
			"endpoint":      endpoint,
			"status":        recorder.statusCode,
			"duration_ms":   duration.Milliseconds(),
			"request_size":  requestSize,
			"response_size": recorder.responseSize,
			"user_agent":    r.UserAgent(),
		}).Debug("HTTP request processed")
	})
}

// responseRecorder wraps http.ResponseWriter to capture response details.
type responseRecorder struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	size, err := r.ResponseWriter.Write(data)
	r.responseSize += int64(size)
	return size, err
}

// sanitizeEndpoint normalizes endpoint paths for metrics.
func sanitizeEndpoint(path string) string {
	switch path {
	case "/":
		return "root"
	case "/healthz":
		return "health"
	case "/ready":
		return "ready"
	case "/live":
		return "live"
	case "/metrics":
		return "metrics"
	case "/ws":
		return "websocket"
	default:
		if len(path) > 20 {
			return "other"
		}
		return path
	}
}
