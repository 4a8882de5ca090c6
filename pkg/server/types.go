package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// RPCMethod represents a unique identifier for RPC methods in the system.
// It is a string type alias used to strongly type RPC method names and
// prevent errors from mistyped method strings.
type RPCMethod string

// EventName identifies an outgoing broadcast notification method. Unlike
// RPCMethod these never carry a request id -- they are fire-and-forget
// JSON-RPC notifications sent to a broadcast group.
type EventName string

// Connection represents one live WebSocket client attached to the hub. It
// wraps the socket with a write mutex (gorilla/websocket connections are
// not safe for concurrent writes) and tracks which session, if any, the
// connection's member currently belongs to.
//
// Fields:
//   - ID: stable connection identifier, generated at accept time and used
//     as the lobby's ConnectionId throughout pkg/lobby.
//   - conn: underlying WebSocket connection handler.
//   - mu: serializes writes to conn.
//   - SessionID/MemberID: populated once the connection's member joins or
//     creates a session; cleared on leave.
type Connection struct {
	ID         string
	conn       *websocket.Conn
	mu         sync.Mutex
	LastActive time.Time
	CreatedAt  time.Time

	sessionMu sync.RWMutex
	SessionID string
	MemberID  string

	inUse int32 // atomic counter for active usage (prevents premature cleanup)

	outbound   chan interface{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// newConnection wraps an upgraded WebSocket connection. The outbound
// channel and its writer goroutine (see startWriter) are the connection's
// broadcast delivery path; request/response writes in the read loop go
// straight through writeJSON.
func newConnection(id string, conn *websocket.Conn) *Connection {
	now := time.Now()
	return &Connection{
		ID:         id,
		conn:       conn,
		LastActive: now,
		CreatedAt:  now,
		outbound:   make(chan interface{}, MessageChanBufferSize),
		writerDone: make(chan struct{}),
	}
}

// writeJSON writes a JSON payload to the connection under its write lock,
// bounding the write itself by writeWaitTimeout so a peer that stops
// reading cannot stall the caller indefinitely.
func (c *Connection) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWaitTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// startWriter drains outbound, writing each queued notification until the
// connection closes or a write fails. It is the sole consumer of
// outbound; run it once per connection, in its own goroutine.
func (c *Connection) startWriter() {
	for {
		select {
		case v, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.writeJSON(v); err != nil {
				return
			}
		case <-c.writerDone:
			return
		}
	}
}

// enqueue queues v for delivery by startWriter, returning false if the
// buffer stays full for longer than MessageSendTimeout. A stalled peer
// must never block the broadcast fan-out to every other member.
func (c *Connection) enqueue(v interface{}) bool {
	select {
	case c.outbound <- v:
		return true
	case <-time.After(MessageSendTimeout):
		return false
	case <-c.writerDone:
		return false
	}
}

// readJSON reads a JSON payload. Reads are never concurrent for a single
// connection (one reader goroutine per connection), so no lock is needed.
func (c *Connection) readJSON(v interface{}) error {
	return c.conn.ReadJSON(v)
}

// close stops the writer goroutine and closes the underlying socket. Safe
// to call more than once.
func (c *Connection) close() error {
	c.closeOnce.Do(func() { close(c.writerDone) })
	return c.conn.Close()
}

// bindSession records the session/member the connection's RPCs are
// currently scoped to.
func (c *Connection) bindSession(sessionID, memberID string) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.SessionID = sessionID
	c.MemberID = memberID
}

// unbindSession clears session scoping, e.g. after LeaveSession.
func (c *Connection) unbindSession() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.SessionID = ""
	c.MemberID = ""
}

// currentSession returns the connection's current session/member binding.
func (c *Connection) currentSession() (sessionID, memberID string) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.SessionID, c.MemberID
}

// touch refreshes the last-active timestamp.
func (c *Connection) touch() {
	c.LastActive = time.Now()
}

// addRef atomically increments the usage counter to prevent cleanup.
func (c *Connection) addRef() {
	atomic.AddInt32(&c.inUse, 1)
}

// release atomically decrements the usage counter.
func (c *Connection) release() {
	atomic.AddInt32(&c.inUse, -1)
}

// isInUse atomically checks if the connection is currently being used.
func (c *Connection) isInUse() bool {
	return atomic.LoadInt32(&c.inUse) > 0
}
