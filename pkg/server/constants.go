package server

import "time"

// Context key type for context values
type contextKey string

// Context keys
const (
	requestIDKey contextKey = "request_id"
)

// Connection bookkeeping constants. connectionCleanupInterval drives
// RPCServer.cleanupConnections, which reaps entries from s.connections
// that have sat idle for three cleanup windows. writeWaitTimeout bounds
// every socket write in Connection.writeJSON so a peer that stops
// reading cannot stall the writer goroutine forever.
const (
	connectionCleanupInterval = 5 * time.Minute
	writeWaitTimeout          = 10 * time.Second
)

// MessageChanBufferSize defines the buffer size for a Connection's
// outbound message channel, drained by Connection.startWriter.
// MessageSendTimeout bounds Connection.enqueue's blocking send so a slow
// client cannot stall the broadcast fan-out in groupRegistry.sendTo.
const (
	MessageChanBufferSize = 500
	MessageSendTimeout    = 50 * time.Millisecond
)

// RPCMethod constants name the RPC surface the Hub Dispatcher exposes to
// the transport, per spec.md 4.D and 6.
const (
	MethodCreateSession     RPCMethod = "CreateSession"
	MethodJoinSession       RPCMethod = "JoinSession"
	MethodLeaveSession      RPCMethod = "LeaveSession"
	MethodGetActiveSessions RPCMethod = "GetActiveSessions"
	MethodStartGame         RPCMethod = "StartGame"
	MethodCreateObject      RPCMethod = "CreateObject"
	MethodUpdateObjects     RPCMethod = "UpdateObjects"
	MethodDeleteObject      RPCMethod = "DeleteObject"

	// Domain-specific relay RPCs (spec.md 4.D.7): opaque payloads,
	// serialized through the session's broadcast channel but causing no
	// registry state change.
	MethodReportBulletHit  RPCMethod = "ReportBulletHit"
	MethodConfirmBulletHit RPCMethod = "ConfirmBulletHit"
	MethodRejectBulletHit  RPCMethod = "RejectBulletHit"
	MethodReportShipHit    RPCMethod = "ReportShipHit"
	MethodReportScore      RPCMethod = "ReportScore"
)

// EventName constants name the outgoing broadcast notifications a session
// or global group may receive, per spec.md 6.
const (
	EventSessionsChanged  EventName = "OnSessionsChanged"
	EventMemberJoined     EventName = "OnMemberJoined"
	EventMemberLeft       EventName = "OnMemberLeft"
	EventObjectCreated    EventName = "OnObjectCreated"
	EventObjectsUpdated   EventName = "OnObjectsUpdated"
	EventObjectDeleted    EventName = "OnObjectDeleted"
	EventObjectTypeEmpty  EventName = "OnObjectTypeEmpty"
	EventObjectRestored   EventName = "OnObjectTypeRestored"
	EventGameStarted      EventName = "OnGameStarted"
	EventBulletHitReport  EventName = "OnBulletHitReported"
	EventBulletHitConfirm EventName = "OnBulletHitConfirmed"
	EventBulletHitReject  EventName = "OnBulletHitRejected"
	EventShipHitReport    EventName = "OnShipHitReported"
	EventScoreReport      EventName = "OnScoreReported"
)

// globalGroup is the name of the broadcast group containing every
// currently connected transport connection (spec.md 4.D).
const globalGroup = "__global__"

// sessionGroup returns the broadcast group name for a session's members.
func sessionGroup(sessionID string) string {
	return "session:" + sessionID
}
