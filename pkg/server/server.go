package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/badvoidstar/astervoids/pkg/config"
	"github.com/badvoidstar/astervoids/pkg/lobby"
	"github.com/badvoidstar/astervoids/pkg/validation"
)

// JSON-RPC 2.0 error codes
const (
	JSONRPCParseError     = -32700 // Invalid JSON was received by the server
	JSONRPCInvalidRequest = -32600 // The JSON sent is not a valid Request object
	JSONRPCMethodNotFound = -32601 // The method does not exist / is not available
	JSONRPCInvalidParams  = -32602 // Invalid method parameter(s)
	JSONRPCInternalError  = -32603 // Internal JSON-RPC error

	// JSONRPCRateLimited lives in the reserved implementation-defined server
	// error range (-32000 to -32099) for a connection sending RPCs faster
	// than its per-connection rpcLimiter allows.
	JSONRPCRateLimited = -32000
)

// JSONRPCError is a JSON-RPC 2.0 error object, usable anywhere an error is
// expected so handleRequest can recover the intended code and message.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return e.Message
}

// NewJSONRPCError creates a new JSON-RPC error with the specified code and message.
func NewJSONRPCError(code int, message string, data interface{}) *JSONRPCError {
	return &JSONRPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// RPCServer terminates WebSocket connections, maintains the connection
// registry, and wires every decoded RPC to the Hub Dispatcher. It and the
// Hub are the only components in this module aware of the transport.
type RPCServer struct {
	webDir     string
	fileServer http.Handler
	Addr       net.Addr

	mu          sync.RWMutex
	connections map[string]*Connection

	sessions *lobby.SessionRegistry
	objects  *lobby.ObjectRegistry
	groups   *groupRegistry
	hub      *Hub

	config        *config.Config
	validator     *validation.InputValidator
	healthChecker *HealthChecker
	metrics       *Metrics
	profiling     *ProfilingServer
	perfMonitor   *PerformanceMonitor
	perfAlerter   *PerformanceAlerter
	rateLimiter   *RateLimiter
	rpcLimiter    *RateLimiter

	done chan struct{}
}

// NewRPCServer creates and initializes a new RPCServer instance from the
// given configuration. It wires the Session Registry, Object Registry,
// broadcast groups, and Hub Dispatcher together, then starts the
// background services (metrics collection, alerting, rate-limiter
// cleanup) that keep the server observable under load.
func NewRPCServer(cfg *config.Config) (*RPCServer, error) {
	logger := logrus.WithField("function", "NewRPCServer")
	logger.Debug("entering NewRPCServer")

	lobbyOpts, err := cfg.LobbyOptions()
	if err != nil {
		logger.WithError(err).Error("failed to build lobby options")
		return nil, fmt.Errorf("failed to build lobby options: %w", err)
	}

	sessions := lobby.NewSessionRegistry(lobbyOpts)
	objects := lobby.NewObjectRegistry(sessions, lobbyOpts.DistributeOrphanedObjects)
	metrics := NewMetrics()
	std := logrus.StandardLogger()
	groups := newGroupRegistry(std)
	hub := newHub(sessions, objects, groups, metrics, std)

	server := &RPCServer{
		webDir:      cfg.WebDir,
		fileServer:  http.FileServer(http.Dir(cfg.WebDir)),
		connections: make(map[string]*Connection),
		sessions:    sessions,
		objects:     objects,
		groups:      groups,
		hub:         hub,
		config:      cfg,
		validator:   validation.NewInputValidator(cfg.MaxRequestSize),
		metrics:     metrics,
		done:        make(chan struct{}),
	}

	server.healthChecker = NewHealthChecker(server)

	profilingConfig := ProfilingConfig{
		Enabled: cfg.EnableProfiling || cfg.EnableDevMode,
		Path:    "/debug/pprof",
	}
	server.profiling = NewProfilingServer(profilingConfig)

	if err := InitTimeoutConfig(cfg); err != nil {
		logger.WithError(err).Error("failed to initialize timeout configuration")
		return nil, fmt.Errorf("failed to initialize timeout configuration: %w", err)
	}

	server.perfMonitor = NewPerformanceMonitor(server.metrics, cfg.MetricsInterval, sessions.ListActiveSessions)

	if cfg.AlertingEnabled {
		var alertHandler AlertHandler = &LogAlertHandler{}
		if cfg.AlertWebhookURL != "" {
			alertHandler = NewWebhookAlertHandler(cfg.AlertWebhookURL, &LogAlertHandler{})
		}
		thresholds := DefaultAlertThresholds()
		thresholds.CheckInterval = cfg.AlertingInterval
		server.perfAlerter = NewPerformanceAlerter(thresholds, alertHandler, server.metrics, sessions.ListActiveSessions)
	}

	if cfg.RateLimitEnabled {
		server.rateLimiter = NewRateLimiter(cfg)
		// rpcLimiter buckets by connection ID rather than client IP: the
		// HTTP-level rateLimiter only sees the one-time upgrade request, so
		// without this a single long-lived WebSocket connection could still
		// flood RPCMethod dispatches with no per-message throttling at all.
		server.rpcLimiter = NewRateLimiter(cfg)
	}

	go server.perfMonitor.Start()
	if server.perfAlerter != nil {
		go server.perfAlerter.Start(context.Background())
	}
	go server.cleanupConnections()

	logger.Info("initialized new RPC server")
	logger.Debug("exiting NewRPCServer")
	return server, nil
}

// ServeHTTP implements http.Handler, routing observability endpoints,
// the WebSocket upgrade, static assets, and the pprof surface (when
// enabled) before falling back to metrics-instrumented request handling.
func (s *RPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)
	ctx := context.WithValue(r.Context(), requestIDKey, requestID)
	r = r.WithContext(ctx)

	switch r.URL.Path {
	case "/healthz":
		if r.Method == http.MethodGet {
			s.metrics.MetricsMiddleware(http.HandlerFunc(s.healthChecker.HealthHandler)).ServeHTTP(w, r)
			return
		}
	case "/ready":
		if r.Method == http.MethodGet {
			s.healthChecker.ReadinessHandler(w, r)
			return
		}
	case "/live":
		if r.Method == http.MethodGet {
			s.healthChecker.LivenessHandler(w, r)
			return
		}
	case "/metrics":
		if r.Method == http.MethodGet {
			s.metrics.GetHandler().ServeHTTP(w, r)
			return
		}
	case "/ws":
		s.HandleWebSocket(w, r)
		return
	}

	if (s.config.EnableProfiling || s.config.EnableDevMode) && len(r.URL.Path) >= 12 && r.URL.Path[:12] == "/debug/pprof" {
		s.profiling.server.Handler.ServeHTTP(w, r)
		return
	}

	s.metrics.MetricsMiddleware(http.HandlerFunc(s.handleStatic)).ServeHTTP(w, r)
}

// handleStatic serves the web client shell from WebDir. The lobby core
// itself never answers an HTTP POST -- every RPC arrives over the /ws
// WebSocket connection once a client is upgraded.
func (s *RPCServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.fileServer.ServeHTTP(w, r)
}

// writeResponse writes a JSON-RPC 2.0 success response.
func writeResponse(w http.ResponseWriter, result, id interface{}) {
	response := struct {
		JSONRPC string      `json:"jsonrpc"`
		Result  interface{} `json:"result"`
		ID      interface{} `json:"id"`
	}{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

// writeError writes a JSON-RPC 2.0 error response.
func writeError(w http.ResponseWriter, code int, message string, data interface{}) {
	response := struct {
		JSONRPC string `json:"jsonrpc"`
		Error   struct {
			Code    int         `json:"code"`
			Message string      `json:"message"`
			Data    interface{} `json:"data,omitempty"`
		} `json:"error"`
		ID interface{} `json:"id"`
	}{
		JSONRPC: "2.0",
	}
	response.Error.Code = code
	response.Error.Message = message
	response.Error.Data = data

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("failed to encode error response")
	}
}

// Stop closes the done channel, which ends the connection reaper and makes
// the server health check report the server as shutting down. The
// performance monitor, alerter and rate-limiter cleanup are stopped by
// Shutdown, not by Stop.
func (s *RPCServer) Stop() {
	close(s.done)
}

// cleanupConnections periodically reaps connections that have sat idle
// past connectionCleanupInterval without a client that ever sent a clean
// close frame -- a vanished peer would otherwise pin an entry in
// s.connections and every broadcast group it joined forever.
func (s *RPCServer) cleanupConnections() {
	ticker := time.NewTicker(connectionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reapIdleConnections()
		case <-s.done:
			return
		}
	}
}

// reapIdleConnections closes every tracked connection that is not
// currently serving an RPC (per addRef/release) and has been idle for
// more than three cleanup windows.
func (s *RPCServer) reapIdleConnections() {
	s.mu.RLock()
	stale := staleConnections(s.connections, connectionCleanupInterval, time.Now())
	s.mu.RUnlock()

	for _, conn := range stale {
		logrus.WithField("connection_id", conn.ID).Warn("reaping idle websocket connection")
		s.unregisterConnection(conn)
		conn.close()
	}
}

// staleConnections returns the connections in conns that are not
// currently serving an RPC and have been idle for more than three
// cleanup windows, as of now.
func staleConnections(conns map[string]*Connection, cleanupInterval time.Duration, now time.Time) []*Connection {
	staleAfter := cleanupInterval * 3
	stale := make([]*Connection, 0)
	for _, conn := range conns {
		if !conn.isInUse() && now.Sub(conn.LastActive) > staleAfter {
			stale = append(stale, conn)
		}
	}
	return stale
}

// Serve starts the HTTP server on the provided listener, wrapping
// RPCServer's own ServeHTTP in the resilience and observability
// middleware stack. It blocks until the listener closes or Shutdown is
// called from another goroutine.
func (s *RPCServer) Serve(listener net.Listener) error {
	logger := logrus.WithFields(logrus.Fields{
		"function": "Serve",
		"address":  listener.Addr().String(),
	})
	s.Addr = listener.Addr()
	logger.Info("starting hub server")

	handler := http.Handler(s)
	handler = s.withTimeout(s.config.RequestTimeout)(handler)
	handler = RateLimitingMiddleware(s.rateLimiter)(handler)
	handler = CORSMiddleware(s.config.AllowedOrigins)(handler)
	handler = s.metrics.MetricsMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)

	srv := &http.Server{Handler: handler}

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("server failed")
		return err
	}

	logger.Info("hub server stopped")
	return nil
}

// withTimeout wraps a handler with a per-request context timeout and
// stamps a request id used by logs and the X-Request-ID response header.
func (s *RPCServer) withTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			requestID := generateRequestID()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// generateRequestID creates a unique request ID for correlation.
func generateRequestID() string {
	return uuid.New().String()
}

// Shutdown stops the server's background components. The HTTP listener
// itself is closed by the caller's http.Server.Shutdown.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	logger := logrus.WithField("function", "Shutdown")
	logger.Info("beginning graceful server shutdown")

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
		logger.Debug("stopped rate limiter cleanup")
	}

	if s.rpcLimiter != nil {
		s.rpcLimiter.Close()
		logger.Debug("stopped RPC rate limiter cleanup")
	}

	if s.perfMonitor != nil {
		s.perfMonitor.Stop()
		logger.Debug("stopped performance monitor")
	}

	if s.perfAlerter != nil {
		s.perfAlerter.Stop()
		logger.Debug("stopped performance alerter")
	}

	if s.profiling != nil && s.profiling.server != nil {
		if err := s.profiling.server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("error shutting down profiling server")
		} else {
			logger.Debug("stopped profiling server")
		}
	}

	logger.Info("graceful server shutdown completed")
	return nil
}
