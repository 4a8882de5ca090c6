package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badvoidstar/astervoids/pkg/config"
	"github.com/badvoidstar/astervoids/pkg/lobby"
)

func newTestRPCServer(t *testing.T, webDir string) *RPCServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sessions := lobby.NewSessionRegistry(lobby.RegistryOptions{
		MaxSessions:               4,
		MaxMembersPerSession:      4,
		DistributeOrphanedObjects: true,
	})
	objects := lobby.NewObjectRegistry(sessions, true)
	metrics := NewMetrics()
	groups := newGroupRegistry(logger)

	return &RPCServer{
		connections: make(map[string]*Connection),
		sessions:    sessions,
		objects:     objects,
		groups:      groups,
		hub:         newHub(sessions, objects, groups, metrics, logger),
		config:      &config.Config{WebDir: webDir, ServerPort: 8080},
		metrics:     metrics,
		done:        make(chan struct{}),
	}
}

func TestCheckWebDirAccessibleDirectory(t *testing.T) {
	srv := newTestRPCServer(t, t.TempDir())
	hc := NewHealthChecker(srv)

	assert.NoError(t, hc.checkWebDir(context.Background()))
}

func TestCheckWebDirMissingDirectory(t *testing.T) {
	srv := newTestRPCServer(t, "/path/does/not/exist")
	hc := NewHealthChecker(srv)

	assert.Error(t, hc.checkWebDir(context.Background()))
}

func TestCheckWebDirRejectsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/not-a-dir"
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	srv := newTestRPCServer(t, file)
	hc := NewHealthChecker(srv)

	assert.Error(t, hc.checkWebDir(context.Background()))
}

func TestHealthHandlerWithUnknownSessionIDReportsUnhealthy(t *testing.T) {
	srv := newTestRPCServer(t, t.TempDir())
	hc := NewHealthChecker(srv)

	req := httptest.NewRequest(http.MethodGet, "/healthz?session_id=does-not-exist", nil)
	rec := httptest.NewRecorder()

	hc.HealthHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	found := false
	for _, check := range response.Checks {
		if check.Name == "requested_session" {
			found = true
			assert.Equal(t, HealthStatusUnhealthy, check.Status)
		}
	}
	assert.True(t, found, "expected a requested_session check in the response")
}

func TestHealthHandlerWithoutSessionIDSkipsSessionCheck(t *testing.T) {
	srv := newTestRPCServer(t, t.TempDir())
	hc := NewHealthChecker(srv)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	hc.HealthHandler(rec, req)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	for _, check := range response.Checks {
		assert.NotEqual(t, "requested_session", check.Name)
	}
}
