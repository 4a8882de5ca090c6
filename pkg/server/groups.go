package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/badvoidstar/astervoids/pkg/integration"
	"github.com/sirupsen/logrus"
)

// groupRegistry tracks which connections belong to which broadcast groups
// and fans out JSON-RPC notifications to them. It mirrors the
// Groups.Add/Remove and Clients.Group(...).Send contract described in
// spec.md 6: every connection is always a member of globalGroup, and
// joins sessionGroup(id) for the lifetime of its session membership.
type groupRegistry struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Connection // group name -> connection ID -> connection
	logger *logrus.Logger
}

func newGroupRegistry(logger *logrus.Logger) *groupRegistry {
	return &groupRegistry{
		groups: make(map[string]map[string]*Connection),
		logger: logger,
	}
}

// add registers a connection as a member of group.
func (g *groupRegistry) add(group string, conn *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.groups[group]
	if !ok {
		members = make(map[string]*Connection)
		g.groups[group] = members
	}
	members[conn.ID] = conn
}

// remove removes a connection from group. Empty groups are pruned.
func (g *groupRegistry) remove(group string, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(g.groups, group)
	}
}

// removeConnectionFromAll removes a connection from every group it belongs
// to, used on disconnect.
func (g *groupRegistry) removeConnectionFromAll(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, members := range g.groups {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(g.groups, name)
			}
		}
	}
}

// snapshot returns the current members of a group, safe to iterate after
// the lock is released.
func (g *groupRegistry) snapshot(group string) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.groups[group]
	out := make([]*Connection, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// send delivers a fire-and-forget JSON-RPC notification to every member of
// group. Individual send failures are logged and otherwise ignored -- a
// slow or dead peer must never block or fail the broadcast for others.
func (g *groupRegistry) send(group string, event EventName, payload interface{}) {
	for _, conn := range g.snapshot(group) {
		g.sendTo(conn, event, payload)
	}
}

// sendToOthers delivers to every member of group except excludeConnID.
func (g *groupRegistry) sendToOthers(group string, excludeConnID string, event EventName, payload interface{}) {
	for _, conn := range g.snapshot(group) {
		if conn.ID == excludeConnID {
			continue
		}
		g.sendTo(conn, event, payload)
	}
}

// sendTo queues one notification onto conn's outbound channel, retrying
// through NetworkExecutor if the buffer is momentarily full, before
// logging and dropping the message (spec.md 7: a delivery failure never
// fails the triggering RPC). The actual socket write happens later, off
// this call's goroutine, in conn.startWriter.
func (g *groupRegistry) sendTo(conn *Connection, event EventName, payload interface{}) {
	notification := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  string(event),
		"params":  payload,
	}

	err := integration.ExecuteNetworkOperation(context.Background(), func(ctx context.Context) error {
		if !conn.enqueue(notification) {
			return fmt.Errorf("connection %s: outbound buffer full", conn.ID)
		}
		return nil
	})
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"connection_id": conn.ID,
			"event":         string(event),
			"error":         err,
		}).Warn("failed to deliver broadcast notification")
	}
}
