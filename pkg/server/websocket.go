package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// orderHosts sorts hosts in a fixed priority order: custom hostnames
// first, localhost second, IP addresses last, each group sorted
// alphabetically for determinism. Kept for parity with the origin
// allowlist tooling config.Config.OriginAllowed's callers expect when
// building a default allowlist.
func orderHosts(hosts map[string]string) []string {
	var hostnames, localhosts, ips []string

	for host := range hosts {
		switch {
		case host == "localhost":
			localhosts = append(localhosts, host)
		case net.ParseIP(host) != nil:
			ips = append(ips, host)
		default:
			hostnames = append(hostnames, host)
		}
	}

	sort.Strings(hostnames)
	sort.Strings(localhosts)
	sort.Strings(ips)

	result := make([]string, 0, len(hosts))
	result = append(result, hostnames...)
	result = append(result, localhosts...)
	result = append(result, ips...)
	return result
}

// upgrader configures the WebSocket upgrade, checking the request Origin
// against the server's configured allowlist via config.Config.OriginAllowed.
func (s *RPCServer) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			allowed := s.config.OriginAllowed(origin)
			if !allowed {
				logrus.WithField("origin", origin).Warn("websocket connection rejected: origin not allowed")
			}
			return allowed
		},
	}
}

// RPCRequest is the JSON-RPC 2.0 request envelope accepted over /ws.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// NewResponse builds a JSON-RPC 2.0 success response.
func NewResponse(id, result interface{}) interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  result,
		"id":      id,
	}
}

// NewErrorResponse builds a JSON-RPC 2.0 error response, preserving a
// *JSONRPCError's code (validation, rate limiting) and falling back to
// JSONRPCInternalError for anything else the dispatcher returns.
func NewErrorResponse(id interface{}, err error) interface{} {
	code := JSONRPCInternalError
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) {
		code = rpcErr.Code
	}

	return map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": err.Error(),
		},
		"id": id,
	}
}

// registerConnection adds conn to the live connection table and notifies
// the Hub of the new connection.
func (s *RPCServer) registerConnection(conn *Connection) {
	s.mu.Lock()
	s.connections[conn.ID] = conn
	s.mu.Unlock()

	s.metrics.RecordWebSocketConnection("connected")
	s.hub.OnConnected(conn)
}

// unregisterConnection removes conn from the live connection table and
// runs the Hub's unconditional disconnect cleanup (spec.md 4.D.1).
func (s *RPCServer) unregisterConnection(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn.ID)
	s.mu.Unlock()

	s.metrics.RecordWebSocketConnection("disconnected")
	s.hub.OnDisconnected(conn)
}

// HandleWebSocket upgrades the HTTP connection and runs the read loop
// that dispatches each decoded RPC to the Hub until the client
// disconnects or sends an unreadable frame.
func (s *RPCServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := logrus.WithField("function", "HandleWebSocket")

	wsConn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	conn := newConnection(uuid.New().String(), wsConn)
	s.registerConnection(conn)
	go conn.startWriter()
	defer func() {
		s.unregisterConnection(conn)
		conn.close()
	}()

	if err := conn.writeJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"result": map[string]string{
			"connectionId": conn.ID,
		},
		"id": 0,
	}); err != nil {
		logger.WithError(err).Error("failed to send connection confirmation")
		return
	}

	logger.WithField("connection_id", conn.ID).Info("websocket connection established")

	for {
		var req RPCRequest
		if err := conn.readJSON(&req); err != nil {
			break
		}
		conn.touch()
		s.metrics.RecordWebSocketMessage("inbound", req.Method)

		// The HTTP-level rateLimiter only ever sees the one-time upgrade
		// request; rpcLimiter buckets by connection ID so a single
		// established connection can't flood the dispatcher with RPCs.
		if s.rpcLimiter != nil && !s.rpcLimiter.Allow(conn.ID) {
			logger.WithField("connection_id", conn.ID).Warn("RPC rate limit exceeded")
			rateLimitErr := NewJSONRPCError(JSONRPCRateLimited, "rate limit exceeded", nil)
			if writeErr := conn.writeJSON(NewErrorResponse(req.ID, rateLimitErr)); writeErr != nil {
				break
			}
			continue
		}

		// Each RPC gets its own request-scoped timeout budget. Unlike the
		// HTTP-layer withTimeout middleware, which only wraps the one-time
		// upgrade request, this bounds every message on the long-lived
		// read loop below. addRef/release keep cleanupConnections from
		// reaping this connection while its RPC is in flight.
		conn.addRef()
		var result interface{}
		err := ExecuteWithRequestTimeout(context.Background(), func(ctx context.Context) error {
			var dispatchErr error
			result, dispatchErr = s.dispatch(conn, RPCMethod(req.Method), req.Params)
			return dispatchErr
		})
		conn.release()
		if err != nil {
			logger.WithFields(logrus.Fields{
				"connection_id": conn.ID,
				"method":        req.Method,
				"error":         err,
			}).Warn("RPC method execution failed")
			if writeErr := conn.writeJSON(NewErrorResponse(req.ID, err)); writeErr != nil {
				break
			}
			continue
		}

		if err := conn.writeJSON(NewResponse(req.ID, result)); err != nil {
			logger.WithError(err).Error("failed to write response")
			break
		}
		s.metrics.RecordWebSocketMessage("outbound", req.Method)
	}
}
