// Package server implements the Hub Dispatcher: a JSON-RPC 2.0 server
// over WebSocket that coordinates small-scale real-time multiplayer game
// lobbies.
//
// # Server Architecture
//
// RPCServer is the main server instance. It owns the transport (HTTP
// listener, WebSocket upgrade, connection bookkeeping) and wires it to
// the Hub, the only component in this package aware of pkg/lobby's
// session and object registries:
//
//	cfg, _ := config.Load()
//	srv, _ := server.NewRPCServer(cfg)
//	srv.Serve(listener)
//
// # Connection Lifecycle
//
// Connection wraps one upgraded WebSocket with a write mutex (gorilla's
// connections are not safe for concurrent writes) and the session/member
// binding the connection currently holds, if any. A connection joins the
// global broadcast group on accept; every group it belongs to is cleaned
// up on disconnect via the Hub's unconditional leave flow.
//
// # JSON-RPC Methods
//
// The server handles the lobby RPC surface via JSON-RPC 2.0 over a single
// WebSocket connection per client:
//   - Session lifecycle: CreateSession, JoinSession, LeaveSession, StartGame
//   - Session discovery: GetActiveSessions
//   - Object mutation: CreateObject, UpdateObjects, DeleteObject
//   - Opaque relay: ReportBulletHit, ConfirmBulletHit, RejectBulletHit,
//     ReportShipHit, ReportScore
//
// # Real-time Communication
//
// Broadcast groups (pkg/server/groups.go) fan out state-change events to
// every member of a session, or to every connected client for the
// session-list signal, matching the transport contract of spec.md 6.
//
// # Operational Features
//
//   - Health checks at /healthz, /ready, /live
//   - Prometheus metrics at /metrics
//   - Request rate limiting with configurable thresholds
//   - Pprof profiling when enabled
//   - Static asset serving from WebDir for the web client shell
//
// # Thread Safety
//
// All server operations are mutex-protected for safe concurrent access.
// The Session and Object registries each own a single coarse mutex;
// broadcast groups use a sync.RWMutex; Connection serializes its own
// writes.
package server
