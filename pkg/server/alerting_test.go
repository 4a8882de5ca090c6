package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingAlertHandler struct {
	alerts []Alert
}

func (r *recordingAlertHandler) HandleAlert(alert Alert) {
	r.alerts = append(r.alerts, alert)
}

func TestWebhookAlertHandlerDeliversAlert(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&received, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fallback := &recordingAlertHandler{}
	handler := NewWebhookAlertHandler(srv.URL, fallback)

	handler.HandleAlert(Alert{
		Level:     AlertLevelWarning,
		Message:   "heap size high",
		Metric:    "heap_size_mb",
		Timestamp: time.Now(),
	})

	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
	assert.Empty(t, fallback.alerts)
}

func TestWebhookAlertHandlerFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fallback := &recordingAlertHandler{}
	handler := NewWebhookAlertHandler(srv.URL, fallback)

	handler.HandleAlert(Alert{
		Level:     AlertLevelCritical,
		Message:   "free memory critical",
		Metric:    "free_memory_mb",
		Timestamp: time.Now(),
	})

	assert.Len(t, fallback.alerts, 1)
	assert.Equal(t, AlertLevelCritical, fallback.alerts[0].Level)
}

func TestWebhookAlertHandlerRoutineExecutorDoesNotRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&attempts, 1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fallback := &recordingAlertHandler{}
	handler := NewWebhookAlertHandler(srv.URL, fallback)

	handler.HandleAlert(Alert{Level: AlertLevelInfo, Message: "info alert", Timestamp: time.Now()})

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Len(t, fallback.alerts, 1)
}
