package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/badvoidstar/astervoids/pkg/integration"
	"github.com/badvoidstar/astervoids/pkg/lobby"
	"github.com/badvoidstar/astervoids/pkg/resilience"
	"github.com/badvoidstar/astervoids/pkg/retry"
)

// AlertThresholds defines configurable thresholds for performance alerts
type AlertThresholds struct {
	// Memory thresholds
	MaxHeapSizeMB      int64         `yaml:"max_heap_size_mb" default:"512"`
	MaxGoroutines      int           `yaml:"max_goroutines" default:"1000"`
	MaxGCPauseDuration time.Duration `yaml:"max_gc_pause_duration" default:"100ms"`

	// Performance thresholds
	MaxResponseTime time.Duration `yaml:"max_response_time" default:"5s"`
	MinMemoryFreeMB int64         `yaml:"min_memory_free_mb" default:"50"`

	// SessionCapacityWarningRatio triggers a warning once the count of
	// active lobby sessions reaches this fraction of RegistryOptions'
	// MaxSessions -- operators get advance notice before CreateSession
	// starts returning ErrCapacityReached to new hosts.
	SessionCapacityWarningRatio float64 `yaml:"session_capacity_warning_ratio" default:"0.8"`

	// Health check intervals
	CheckInterval time.Duration `yaml:"check_interval" default:"30s"`
}

// AlertLevel represents the severity of an alert
type AlertLevel int

const (
	AlertLevelInfo AlertLevel = iota
	AlertLevelWarning
	AlertLevelCritical
)

// String returns the string representation of an alert level
func (al AlertLevel) String() string {
	switch al {
	case AlertLevelInfo:
		return "info"
	case AlertLevelWarning:
		return "warning"
	case AlertLevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Alert represents a performance alert
type Alert struct {
	Level     AlertLevel
	Message   string
	Metric    string
	Value     interface{}
	Threshold interface{}
	Timestamp time.Time
}

// AlertHandler defines how alerts should be handled
type AlertHandler interface {
	HandleAlert(alert Alert)
}

// LogAlertHandler logs alerts using logrus
type LogAlertHandler struct{}

// HandleAlert implements AlertHandler for logging
func (lah *LogAlertHandler) HandleAlert(alert Alert) {
	logger := logrus.WithFields(logrus.Fields{
		"level":     alert.Level.String(),
		"metric":    alert.Metric,
		"value":     alert.Value,
		"threshold": alert.Threshold,
		"timestamp": alert.Timestamp,
	})

	switch alert.Level {
	case AlertLevelInfo:
		logger.Info(alert.Message)
	case AlertLevelWarning:
		logger.Warn(alert.Message)
	case AlertLevelCritical:
		logger.Error(alert.Message)
	}
}

// WebhookAlertHandler posts alerts to an operator-configured HTTP endpoint.
// A webhook target fits none of pkg/integration's three predefined
// executors (file system, broadcast socket, config loader), so it builds
// its own pair of resilient executors: critical alerts bypass the circuit
// breaker entirely since they must reach the operator even while the
// breaker is tripped on routine noise, while info/warning alerts fail fast
// without retrying so a struggling webhook endpoint can't back up the
// alerting loop.
type WebhookAlertHandler struct {
	url      string
	client   *http.Client
	critical *integration.ResilientExecutor
	routine  *integration.ResilientExecutor
	fallback AlertHandler
}

// NewWebhookAlertHandler creates a handler that posts to url, falling back
// to fallback (typically a LogAlertHandler) when delivery fails. It probes
// the endpoint once at construction time through integration.ExecuteResilient
// so a misconfigured URL shows up in the startup log rather than silently
// swallowing the first real alert.
func NewWebhookAlertHandler(url string, fallback AlertHandler) *WebhookAlertHandler {
	h := &WebhookAlertHandler{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		critical: integration.WithCircuitBreakerDisabled(retry.NetworkRetryConfig()),
		routine: integration.CreateCustomExecutor(
			"alert_webhook_routine",
			resilience.DefaultCircuitBreakerConfig("alert_webhook_routine"),
			retry.RetryConfig{MaxAttempts: 1, BackoffMultiplier: 1.0},
		),
		fallback: fallback,
	}

	err := integration.ExecuteResilient(context.Background(), func(ctx context.Context) error {
		return h.ping(ctx)
	},
		integration.ConfigureRetry(retry.NetworkRetryConfig()),
		integration.ConfigureCircuitBreaker(resilience.DefaultCircuitBreakerConfig("alert_webhook_probe")),
	)
	if err != nil {
		logrus.WithError(err).Warn("alert webhook endpoint did not respond to startup probe")
	}

	return h
}

func (h *WebhookAlertHandler) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// HandleAlert implements AlertHandler by posting the alert as JSON, routing
// through the critical or routine executor by severity, and falling back to
// h.fallback when delivery ultimately fails.
func (h *WebhookAlertHandler) HandleAlert(alert Alert) {
	executor := h.routine
	if alert.Level == AlertLevelCritical {
		executor = h.critical
	}

	err := executor.Execute(context.Background(), func(ctx context.Context) error {
		return h.post(ctx, alert)
	})
	if err != nil {
		logrus.WithError(err).Warn("alert webhook delivery failed, falling back to log handler")
		if h.fallback != nil {
			h.fallback.HandleAlert(alert)
		}
	}
}

func (h *WebhookAlertHandler) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// PerformanceAlerter monitors system performance and triggers alerts
type PerformanceAlerter struct {
	thresholds      AlertThresholds
	handler         AlertHandler
	metrics         *Metrics
	sessionSnapshot func() lobby.ActiveSessionsSnapshot
	stopChan        chan struct{}
}

// NewPerformanceAlerter creates a new performance alerter. sessionSnapshot
// supplies the current lobby session count and capacity so checkPerformance
// can alert on approaching session-capacity exhaustion alongside the
// runtime's own memory/goroutine signals; pass nil to skip that check.
func NewPerformanceAlerter(thresholds AlertThresholds, handler AlertHandler, metrics *Metrics, sessionSnapshot func() lobby.ActiveSessionsSnapshot) *PerformanceAlerter {
	return &PerformanceAlerter{
		thresholds:      thresholds,
		handler:         handler,
		metrics:         metrics,
		sessionSnapshot: sessionSnapshot,
		stopChan:        make(chan struct{}),
	}
}

// Start begins monitoring and alerting
func (pa *PerformanceAlerter) Start(ctx context.Context) {
	ticker := time.NewTicker(pa.thresholds.CheckInterval)
	defer ticker.Stop()

	logrus.WithField("interval", pa.thresholds.CheckInterval).Info("Starting performance alerting")

	for {
		select {
		case <-ticker.C:
			pa.checkPerformance()
		case <-pa.stopChan:
			logrus.Info("Stopping performance alerting")
			return
		case <-ctx.Done():
			logrus.Info("Context cancelled, stopping performance alerting")
			return
		}
	}
}

// Stop stops the performance alerter
func (pa *PerformanceAlerter) Stop() {
	close(pa.stopChan)
}

// checkPerformance performs all performance checks
func (pa *PerformanceAlerter) checkPerformance() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Check heap size
	heapSizeMB := int64(memStats.HeapSys / 1024 / 1024)
	if heapSizeMB > pa.thresholds.MaxHeapSizeMB {
		pa.handler.HandleAlert(Alert{
			Level:     AlertLevelWarning,
			Message:   fmt.Sprintf("Heap size exceeds threshold: %dMB > %dMB", heapSizeMB, pa.thresholds.MaxHeapSizeMB),
			Metric:    "heap_size_mb",
			Value:     heapSizeMB,
			Threshold: pa.thresholds.MaxHeapSizeMB,
			Timestamp: time.Now(),
		})
	}

	// Check goroutines count
	goroutines := runtime.NumGoroutine()
	if goroutines > pa.thresholds.MaxGoroutines {
		pa.handler.HandleAlert(Alert{
			Level:     AlertLevelWarning,
			Message:   fmt.Sprintf("Goroutines count exceeds threshold: %d > %d", goroutines, pa.thresholds.MaxGoroutines),
			Metric:    "goroutines_count",
			Value:     goroutines,
			Threshold: pa.thresholds.MaxGoroutines,
			Timestamp: time.Now(),
		})
	}

	// Check GC pause time (using last pause)
	if memStats.NumGC > 0 {
		gcPause := time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256])
		if gcPause > pa.thresholds.MaxGCPauseDuration {
			pa.handler.HandleAlert(Alert{
				Level:     AlertLevelWarning,
				Message:   fmt.Sprintf("GC pause duration exceeds threshold: %v > %v", gcPause, pa.thresholds.MaxGCPauseDuration),
				Metric:    "gc_pause_duration",
				Value:     gcPause,
				Threshold: pa.thresholds.MaxGCPauseDuration,
				Timestamp: time.Now(),
			})
		}
	}

	// Check available memory
	heapAllocMB := int64(memStats.HeapAlloc / 1024 / 1024)
	heapSysMB := int64(memStats.HeapSys / 1024 / 1024)
	freeMemoryMB := heapSysMB - heapAllocMB

	if freeMemoryMB < pa.thresholds.MinMemoryFreeMB {
		pa.handler.HandleAlert(Alert{
			Level:     AlertLevelCritical,
			Message:   fmt.Sprintf("Free memory below threshold: %dMB < %dMB", freeMemoryMB, pa.thresholds.MinMemoryFreeMB),
			Metric:    "free_memory_mb",
			Value:     freeMemoryMB,
			Threshold: pa.thresholds.MinMemoryFreeMB,
			Timestamp: time.Now(),
		})
	}

	pa.checkSessionCapacity()
}

// checkSessionCapacity alerts once the fraction of occupied session slots
// reaches SessionCapacityWarningRatio, and escalates to critical once the
// lobby is completely full -- the point at which CreateSession starts
// rejecting new hosts with ErrCapacityReached.
func (pa *PerformanceAlerter) checkSessionCapacity() {
	if pa.sessionSnapshot == nil {
		return
	}

	snapshot := pa.sessionSnapshot()
	if snapshot.MaxSessions <= 0 {
		return
	}

	active := len(snapshot.Sessions)
	ratio := float64(active) / float64(snapshot.MaxSessions)

	switch {
	case !snapshot.CanCreateSession:
		pa.handler.HandleAlert(Alert{
			Level:     AlertLevelCritical,
			Message:   fmt.Sprintf("Lobby at session capacity: %d/%d active sessions", active, snapshot.MaxSessions),
			Metric:    "active_sessions_ratio",
			Value:     ratio,
			Threshold: 1.0,
			Timestamp: time.Now(),
		})
	case ratio >= pa.thresholds.SessionCapacityWarningRatio:
		pa.handler.HandleAlert(Alert{
			Level:     AlertLevelWarning,
			Message:   fmt.Sprintf("Lobby approaching session capacity: %d/%d active sessions", active, snapshot.MaxSessions),
			Metric:    "active_sessions_ratio",
			Value:     ratio,
			Threshold: pa.thresholds.SessionCapacityWarningRatio,
			Timestamp: time.Now(),
		})
	}
}

// DefaultAlertThresholds returns reasonable default thresholds
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxHeapSizeMB:               512,
		MaxGoroutines:               1000,
		MaxGCPauseDuration:          100 * time.Millisecond,
		MaxResponseTime:             5 * time.Second,
		MinMemoryFreeMB:             50,
		SessionCapacityWarningRatio: 0.8,
		CheckInterval:               30 * time.Second,
	}
}
