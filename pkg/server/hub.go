package server

import (
	"github.com/badvoidstar/astervoids/pkg/lobby"
	"github.com/sirupsen/logrus"
)

// Hub and the RPCServer that feeds it are the only components aware of
// the transport; the lobby registries never see a connection. It translates
// JSON-RPC calls arriving on a Connection into pkg/lobby registry calls
// and fans out the resulting events over the broadcast groups, per
// spec.md 4.D. RPCServer embeds a Hub and exposes its handlers to the
// websocket message loop.
type Hub struct {
	sessions *lobby.SessionRegistry
	objects  *lobby.ObjectRegistry
	groups   *groupRegistry
	metrics  *Metrics
	logger   *logrus.Logger
}

func newHub(sessions *lobby.SessionRegistry, objects *lobby.ObjectRegistry, groups *groupRegistry, metrics *Metrics, logger *logrus.Logger) *Hub {
	return &Hub{
		sessions: sessions,
		objects:  objects,
		groups:   groups,
		metrics:  metrics,
		logger:   logger,
	}
}

// broadcastSessionsChanged emits the global "a session list changed"
// signal. Per spec.md 5, it carries no payload -- clients re-fetch
// GetActiveSessions.
func (h *Hub) broadcastSessionsChanged() {
	h.groups.send(globalGroup, EventSessionsChanged, nil)
	h.metrics.RecordBroadcastEvent(EventSessionsChanged)
	h.metrics.UpdateActiveSessions(len(h.sessions.ListActiveSessions().Sessions))
}

func (h *Hub) emit(group string, event EventName, payload interface{}) {
	h.groups.send(group, event, payload)
	h.metrics.RecordBroadcastEvent(event)
}

func (h *Hub) emitToOthers(group, excludeConnID string, event EventName, payload interface{}) {
	h.groups.sendToOthers(group, excludeConnID, event, payload)
	h.metrics.RecordBroadcastEvent(event)
}

// OnConnected adds a newly accepted connection to the global group. Every
// live connection is a member of globalGroup for the lifetime of the
// socket, independent of any session membership.
func (h *Hub) OnConnected(conn *Connection) {
	h.groups.add(globalGroup, conn)
}

// OnDisconnected runs the unconditional leave flow for conn's connection
// id, then removes it from every broadcast group. Per spec.md 4.D.1 this
// must never propagate a panic: any unexpected failure here would leave
// the registry indexes partially populated.
func (h *Hub) OnDisconnected(conn *Connection) {
	defer h.groups.removeConnectionFromAll(conn.ID)

	defer func() {
		if r := recover(); r != nil {
			h.logger.WithFields(logrus.Fields{
				"connection_id": conn.ID,
				"panic":         r,
			}).Error("panic during disconnect cleanup")
		}
	}()

	h.leaveSession(conn)
}

// CreateSessionResult is the response payload for a successful
// CreateSession RPC.
type CreateSessionResult struct {
	SessionID   string     `json:"sessionId"`
	SessionName string     `json:"sessionName"`
	MemberID    string     `json:"memberId"`
	Role        lobby.Role `json:"role"`
	AspectRatio float64    `json:"aspectRatio"`
}

// CreateSession implements spec.md 4.D.2.
func (h *Hub) CreateSession(conn *Connection, aspectRatio float64) *CreateSessionResult {
	session, member, err := h.sessions.CreateSession(conn.ID, aspectRatio)
	h.metrics.RecordRPCInvocation(string(MethodCreateSession), err)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"connection_id": conn.ID,
			"error":         err,
		}).Warn("CreateSession rejected")
		return nil
	}

	conn.bindSession(session.ID, member.ID)
	h.groups.add(sessionGroup(session.ID), conn)
	h.broadcastSessionsChanged()

	return &CreateSessionResult{
		SessionID:   session.ID,
		SessionName: session.Name,
		MemberID:    member.ID,
		Role:        member.Role,
		AspectRatio: session.AspectRatio,
	}
}

// MemberInfo is the wire representation of a lobby.Member.
type MemberInfo struct {
	ID       string      `json:"id"`
	Role     lobby.Role  `json:"role"`
	JoinedAt interface{} `json:"joinedAt"`
}

// ObjectInfo is the wire representation of a lobby.Object.
type ObjectInfo struct {
	ID              string                 `json:"id"`
	CreatorMemberID string                 `json:"creatorMemberId"`
	OwnerMemberID   string                 `json:"ownerMemberId"`
	Scope           lobby.Scope            `json:"scope"`
	Data            map[string]interface{} `json:"data"`
	Version         uint64                 `json:"version"`
}

func toObjectInfo(o *lobby.Object) ObjectInfo {
	return ObjectInfo{
		ID:              o.ID,
		CreatorMemberID: o.CreatorMemberID,
		OwnerMemberID:   o.OwnerMemberID,
		Scope:           o.Scope,
		Data:            o.Data,
		Version:         o.Version,
	}
}

// JoinSessionResult is the join-snapshot returned by a successful
// JoinSession RPC: the full observable state a newly joined member needs.
type JoinSessionResult struct {
	SessionID   string       `json:"sessionId"`
	SessionName string       `json:"sessionName"`
	MemberID    string       `json:"memberId"`
	Role        lobby.Role   `json:"role"`
	Members     []MemberInfo `json:"members"`
	Objects     []ObjectInfo `json:"objects"`
	AspectRatio float64      `json:"aspectRatio"`
	GameStarted bool         `json:"gameStarted"`
}

// MemberJoinedEvent is the OnMemberJoined broadcast payload.
type MemberJoinedEvent struct {
	MemberID string      `json:"memberId"`
	Role     lobby.Role  `json:"role"`
	JoinedAt interface{} `json:"joinedAt"`
}

// JoinSession implements spec.md 4.D.3.
func (h *Hub) JoinSession(conn *Connection, sessionID string) *JoinSessionResult {
	session, member, err := h.sessions.JoinSession(sessionID, conn.ID)
	h.metrics.RecordRPCInvocation(string(MethodJoinSession), err)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"connection_id": conn.ID,
			"session_id":    sessionID,
			"error":         err,
		}).Warn("JoinSession rejected")
		return nil
	}

	conn.bindSession(session.ID, member.ID)
	group := sessionGroup(session.ID)
	h.groups.add(group, conn)

	h.emitToOthers(group, conn.ID, EventMemberJoined, MemberJoinedEvent{
		MemberID: member.ID,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	})
	h.broadcastSessionsChanged()
	h.metrics.UpdateActiveMembers(len(session.Members))

	objects := h.objects.ListSessionObjects(session.ID)
	objectInfos := make([]ObjectInfo, 0, len(objects))
	for _, o := range objects {
		objectInfos = append(objectInfos, toObjectInfo(o))
	}

	members := make([]MemberInfo, 0, len(session.Members))
	for _, m := range session.Members {
		members = append(members, MemberInfo{ID: m.ID, Role: m.Role, JoinedAt: m.JoinedAt})
	}

	return &JoinSessionResult{
		SessionID:   session.ID,
		SessionName: session.Name,
		MemberID:    member.ID,
		Role:        member.Role,
		Members:     members,
		Objects:     objectInfos,
		AspectRatio: session.AspectRatio,
		GameStarted: session.GameStarted,
	}
}

// MemberLeftEvent is the OnMemberLeft broadcast payload.
type MemberLeftEvent struct {
	MemberID         string                  `json:"memberId"`
	PromotedMemberID string                  `json:"promotedMemberId,omitempty"`
	PromotedRole     lobby.Role              `json:"promotedRole,omitempty"`
	DeletedObjectIDs []string                `json:"deletedObjectIds"`
	Migrations       []lobby.ObjectMigration `json:"migrations"`
}

// LeaveSession implements spec.md 4.D.4. It is also the cleanup path
// invoked by OnDisconnected, making the flow idempotent: a connection
// with no bound session is a silent no-op.
func (h *Hub) LeaveSession(conn *Connection) {
	h.leaveSession(conn)
}

func (h *Hub) leaveSession(conn *Connection) {
	result, remaining := h.sessions.LeaveSession(conn.ID)
	h.metrics.RecordRPCInvocation(string(MethodLeaveSession), nil)
	if result == nil {
		return
	}

	conn.unbindSession()
	group := sessionGroup(result.SessionID)
	h.groups.remove(group, conn.ID)

	effects := h.objects.HandleMemberDeparture(result.SessionID, result.MemberID, remaining)

	if result.SessionDestroyed {
		h.objects.DropSession(result.SessionID)
	} else {
		event := MemberLeftEvent{
			MemberID:         result.MemberID,
			DeletedObjectIDs: effects.DeletedIDs,
			Migrations:       effects.Migrations,
		}
		if result.PromotedMemberID != "" {
			event.PromotedMemberID = result.PromotedMemberID
			event.PromotedRole = lobby.RoleAuthority
		}
		h.emit(group, EventMemberLeft, event)

		for _, typ := range effects.AffectedTypes {
			if h.objects.CountByType(result.SessionID, typ) == 0 {
				h.emit(group, EventObjectTypeEmpty, typ)
			}
		}

		h.metrics.UpdateActiveMembers(len(remaining))
	}

	h.broadcastSessionsChanged()
}

// StartGame implements spec.md 4.D.5.
func (h *Hub) StartGame(conn *Connection) bool {
	sessionID, memberID := conn.currentSession()
	err := h.sessions.StartGame(sessionID, memberID)
	h.metrics.RecordRPCInvocation(string(MethodStartGame), err)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"connection_id": conn.ID,
			"session_id":    sessionID,
			"error":         err,
		}).Warn("StartGame rejected")
		return false
	}

	group := sessionGroup(sessionID)
	h.emit(group, EventGameStarted, sessionID)
	h.broadcastSessionsChanged()
	return true
}

// CreateObject implements spec.md 4.D.6's create path, including the
// 0->1 type-transition signal.
func (h *Hub) CreateObject(conn *Connection, scope lobby.Scope, data map[string]interface{}, ownerMemberID *string) *ObjectInfo {
	sessionID, memberID := conn.currentSession()

	obj := h.objects.CreateObject(sessionID, memberID, scope, data, ownerMemberID)
	h.metrics.RecordRPCInvocation(string(MethodCreateObject), createObjectErr(obj))
	if obj == nil {
		return nil
	}

	group := sessionGroup(sessionID)
	info := toObjectInfo(obj)
	h.emit(group, EventObjectCreated, info)

	if typ := obj.DataType(); typ != "" && h.objects.CountByType(sessionID, typ) == 1 {
		h.emit(group, EventObjectRestored, typ)
	}

	h.metrics.UpdateActiveObjects(len(h.objects.ListSessionObjects(sessionID)))
	return &info
}

// createObjectErr synthesizes a non-nil error for metrics when the
// registry rejects a create; the registry itself returns a bare nil
// rather than a sentinel in this path.
func createObjectErr(obj *lobby.Object) error {
	if obj != nil {
		return nil
	}
	return lobby.ErrNotFound
}

// UpdateObjects implements spec.md 4.D.6's update path.
func (h *Hub) UpdateObjects(conn *Connection, patches []lobby.ObjectPatch) []ObjectInfo {
	sessionID, _ := conn.currentSession()

	updated := h.objects.UpdateObjects(sessionID, patches)
	h.metrics.RecordRPCInvocation(string(MethodUpdateObjects), nil)

	infos := make([]ObjectInfo, 0, len(updated))
	for _, o := range updated {
		infos = append(infos, toObjectInfo(o))
	}

	if len(infos) > 0 {
		h.emit(sessionGroup(sessionID), EventObjectsUpdated, infos)
	}

	return infos
}

// DeleteObject implements spec.md 4.D.6's delete path, including the 1->0
// type-transition signal.
func (h *Hub) DeleteObject(conn *Connection, objectID string) bool {
	sessionID, _ := conn.currentSession()

	obj := h.objects.DeleteObject(sessionID, objectID)
	h.metrics.RecordRPCInvocation(string(MethodDeleteObject), createObjectErr(obj))
	if obj == nil {
		return false
	}

	group := sessionGroup(sessionID)
	h.emit(group, EventObjectDeleted, objectID)

	if typ := obj.DataType(); typ != "" && h.objects.CountByType(sessionID, typ) == 0 {
		h.emit(group, EventObjectTypeEmpty, typ)
	}

	h.metrics.UpdateActiveObjects(len(h.objects.ListSessionObjects(sessionID)))
	return true
}

// GetActiveSessions implements spec.md 4.D.8.
func (h *Hub) GetActiveSessions() lobby.ActiveSessionsSnapshot {
	h.metrics.RecordRPCInvocation(string(MethodGetActiveSessions), nil)
	return h.sessions.ListActiveSessions()
}

// relayEvents maps each relay RPC method to the event it rebroadcasts as.
var relayEvents = map[RPCMethod]EventName{
	MethodReportBulletHit:  EventBulletHitReport,
	MethodConfirmBulletHit: EventBulletHitConfirm,
	MethodRejectBulletHit:  EventBulletHitReject,
	MethodReportShipHit:    EventShipHitReport,
	MethodReportScore:      EventScoreReport,
}

// Relay implements spec.md 4.D.7: opaque game-logic payloads are relayed
// to the rest of the caller's session group with the reporter's member id
// appended, without touching the Session or Object Registry.
func (h *Hub) Relay(conn *Connection, method RPCMethod, payload map[string]interface{}) bool {
	sessionID, memberID := conn.currentSession()
	if sessionID == "" {
		h.metrics.RecordRPCInvocation(string(method), lobby.ErrNotFound)
		return false
	}

	event, ok := relayEvents[method]
	if !ok {
		return false
	}

	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["reporterMemberId"] = memberID

	h.metrics.RecordRPCInvocation(string(method), nil)
	h.emitToOthers(sessionGroup(sessionID), conn.ID, event, payload)
	return true
}
