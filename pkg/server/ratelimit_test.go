package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/badvoidstar/astervoids/pkg/config"
)

func TestNewRateLimiter(t *testing.T) {
	cfg := &config.Config{
		RateLimitRequestsPerSecond: 5.0,
		RateLimitBurst:             10,
		RateLimitCleanupInterval:   time.Minute,
	}

	rl := NewRateLimiter(cfg)
	require.NotNil(t, rl)
	assert.Equal(t, rate.Limit(5.0), rl.requestsPerSecond)
	assert.Equal(t, 10, rl.burst)
	assert.Equal(t, time.Minute, rl.cleanupInterval)
	assert.Equal(t, time.Minute*5, rl.maxAge)
	rl.Close()
}

func TestRateLimiterAllow(t *testing.T) {
	cfg := &config.Config{
		RateLimitRequestsPerSecond: 2.0,
		RateLimitBurst:             3,
		RateLimitCleanupInterval:   time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Close()

	assert.True(t, rl.Allow("192.168.1.1"))
	assert.True(t, rl.Allow("192.168.1.1"))
	assert.True(t, rl.Allow("192.168.1.1"))
	assert.False(t, rl.Allow("192.168.1.1"))

	// A different key -- an IP in HTTP middleware, a connection ID when
	// used as the RPC limiter -- tracks its own independent bucket.
	assert.True(t, rl.Allow("192.168.1.2"))
}

func TestRateLimitingMiddlewareRateLimited(t *testing.T) {
	cfg := &config.Config{
		RateLimitRequestsPerSecond: 1.0,
		RateLimitBurst:             1,
		RateLimitCleanupInterval:   time.Minute,
	}
	rl := NewRateLimiter(cfg)
	defer rl.Close()

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitingMiddleware(rl)(testHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	ctx := context.WithValue(req.Context(), "logger", logrus.StandardLogger())
	req = req.WithContext(ctx)

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.Equal(t, "1", w2.Header().Get("Retry-After"))
}

// TestRPCRateLimitExceeded confirms a connection that bursts past its
// rpcLimiter budget gets a JSON-RPC error on the socket instead of being
// disconnected, while a connection under the limit dispatches normally.
// Unlike rateLimiter (keyed by client IP and only checked on the HTTP
// upgrade), rpcLimiter is checked on every message on the long-lived read
// loop, keyed by connection ID.
func TestRPCRateLimitExceeded(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequestsPerSecond = 1.0
	cfg.RateLimitBurst = 1
	cfg.AlertingEnabled = false
	cfg.WebDir = t.TempDir()

	srv, err := NewRPCServer(cfg)
	require.NoError(t, err)
	defer func() {
		srv.Stop()
		srv.Shutdown(context.Background())
	}()

	testServer := httptest.NewServer(srv)
	defer testServer.Close()

	wsURL := "ws" + testServer.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Drain the connection-established notification.
	var ack map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ack))

	sendRequest := func(id int) map[string]interface{} {
		require.NoError(t, conn.WriteJSON(RPCRequest{
			JSONRPC: "2.0",
			Method:  string(MethodGetActiveSessions),
			ID:      id,
		}))
		var resp map[string]interface{}
		require.NoError(t, conn.ReadJSON(&resp))
		return resp
	}

	first := sendRequest(1)
	assert.Nil(t, first["error"])

	second := sendRequest(2)
	require.NotNil(t, second["error"])
	errObj, ok := second["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(JSONRPCRateLimited), errObj["code"])
}
