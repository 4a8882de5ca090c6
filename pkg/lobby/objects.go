package lobby

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// DepartureEffects summarizes what HandleMemberDeparture did to a
// session's objects.
type DepartureEffects struct {
	DeletedIDs    []string
	Migrations    []ObjectMigration
	AffectedTypes []string
}

// ObjectMigration records a single ownership reassignment performed by
// HandleMemberDeparture.
type ObjectMigration struct {
	ObjectID   string `json:"objectId"`
	NewOwnerID string `json:"newOwnerId"`
}

// ObjectRegistry owns the per-session Object store: versioned objects,
// the type-index used by CountByType, and the scope-based cleanup and
// migration that happens when a member departs.
//
// A single mutex guards all object maps and the type-index across every
// session -- the lobby sizes this spec targets (single-digit sessions,
// handful of objects each) make one coarse lock simpler and no less
// correct than per-session sharding, and it keeps CountByType and
// HandleMemberDeparture trivially consistent with each other.
type ObjectRegistry struct {
	sessions          *SessionRegistry
	distributeOrphans bool

	mu        sync.Mutex
	typeIndex map[string]map[string]map[string]struct{} // sessionId -> type -> objectId set
}

// NewObjectRegistry constructs an ObjectRegistry bound to the given
// SessionRegistry, used to validate session and member existence.
// distributeOrphans mirrors RegistryOptions.DistributeOrphanedObjects and
// controls HandleMemberDeparture's PerSession migration strategy.
func NewObjectRegistry(sessions *SessionRegistry, distributeOrphans bool) *ObjectRegistry {
	return &ObjectRegistry{
		sessions:          sessions,
		distributeOrphans: distributeOrphans,
		typeIndex:         make(map[string]map[string]map[string]struct{}),
	}
}

// indexAdd records that object id belongs to the given type within
// sessionID. Callers must hold o.mu.
func (o *ObjectRegistry) indexAdd(sessionID, typ, id string) {
	if typ == "" {
		return
	}
	byType, ok := o.typeIndex[sessionID]
	if !ok {
		byType = make(map[string]map[string]struct{})
		o.typeIndex[sessionID] = byType
	}
	set, ok := byType[typ]
	if !ok {
		set = make(map[string]struct{})
		byType[typ] = set
	}
	set[id] = struct{}{}
}

// indexRemove undoes indexAdd. Callers must hold o.mu.
func (o *ObjectRegistry) indexRemove(sessionID, typ, id string) {
	if typ == "" {
		return
	}
	byType, ok := o.typeIndex[sessionID]
	if !ok {
		return
	}
	set, ok := byType[typ]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(byType, typ)
	}
}

// CreateObject allocates a new object owned by creatorMemberID (or
// ownerMemberID, if supplied and it names a live member of the session).
//
// Returns nil if sessionID is absent, creatorMemberID is not a member of
// it, or ownerMemberID is supplied but is not a live member.
func (o *ObjectRegistry) CreateObject(sessionID, creatorMemberID string, scope Scope, data map[string]interface{}, ownerMemberID *string) *Object {
	if !o.sessions.SessionExists(sessionID) || !o.sessions.HasMember(sessionID, creatorMemberID) {
		return nil
	}

	owner := creatorMemberID
	if ownerMemberID != nil {
		if !o.sessions.HasMember(sessionID, *ownerMemberID) {
			return nil
		}
		owner = *ownerMemberID
	}

	session := o.sessions.GetSession(sessionID)
	if session == nil {
		return nil
	}

	if data == nil {
		data = make(map[string]interface{})
	}

	now := time.Now()
	obj := &Object{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		CreatorMemberID: creatorMemberID,
		OwnerMemberID:   owner,
		Scope:           scope,
		Data:            data,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	o.mu.Lock()
	session.Objects[obj.ID] = obj
	o.indexAdd(sessionID, obj.typeOf(), obj.ID)
	o.mu.Unlock()

	return obj
}

// UpdateObject shallow-merges patch into the object's Data, incrementing
// Version and refreshing UpdatedAt.
//
// Returns nil on missing session, missing object, or when expectedVersion
// is non-nil and does not match the object's current Version -- the
// latter is a silent optimistic-concurrency no-op, not an error.
func (o *ObjectRegistry) UpdateObject(sessionID, objectID string, patch map[string]interface{}, expectedVersion *uint64) *Object {
	session := o.sessions.GetSession(sessionID)
	if session == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	obj, ok := session.Objects[objectID]
	if !ok {
		return nil
	}
	if expectedVersion != nil && *expectedVersion != obj.Version {
		return nil
	}

	oldType := obj.typeOf()

	if obj.Data == nil {
		obj.Data = make(map[string]interface{})
	}
	for k, v := range patch {
		obj.Data[k] = v
	}
	obj.Version++
	obj.UpdatedAt = time.Now()

	newType := obj.typeOf()
	if newType != oldType {
		o.indexRemove(sessionID, oldType, objectID)
		o.indexAdd(sessionID, newType, objectID)
	}

	return obj
}

// ObjectPatch is one entry of a UpdateObjects batch.
type ObjectPatch struct {
	ObjectID        string
	Data            map[string]interface{}
	ExpectedVersion *uint64
}

// UpdateObjects applies each patch independently using UpdateObject's
// rules. Patches that fail their precondition are skipped; the returned
// slice preserves input order and contains only the successfully updated
// objects. There is no all-or-nothing semantic across patches.
func (o *ObjectRegistry) UpdateObjects(sessionID string, patches []ObjectPatch) []*Object {
	updated := make([]*Object, 0, len(patches))
	for _, p := range patches {
		if obj := o.UpdateObject(sessionID, p.ObjectID, p.Data, p.ExpectedVersion); obj != nil {
			updated = append(updated, obj)
		}
	}
	return updated
}

// DeleteObject atomically removes and returns objectID from sessionID,
// or nil if it was not present -- a second delete of the same id is
// therefore a no-op that also returns nil.
func (o *ObjectRegistry) DeleteObject(sessionID, objectID string) *Object {
	session := o.sessions.GetSession(sessionID)
	if session == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	obj, ok := session.Objects[objectID]
	if !ok {
		return nil
	}
	delete(session.Objects, objectID)
	o.indexRemove(sessionID, obj.typeOf(), objectID)
	return obj
}

// GetObject returns the object, or nil if sessionID/objectID do not
// resolve to a live object.
func (o *ObjectRegistry) GetObject(sessionID, objectID string) *Object {
	session := o.sessions.GetSession(sessionID)
	if session == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return session.Objects[objectID]
}

// ListSessionObjects returns every object in sessionID in an unspecified
// but stable-within-a-call order.
func (o *ObjectRegistry) ListSessionObjects(sessionID string) []*Object {
	session := o.sessions.GetSession(sessionID)
	if session == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*Object, 0, len(session.Objects))
	ids := make([]string, 0, len(session.Objects))
	for id := range session.Objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		out = append(out, session.Objects[id])
	}
	return out
}

// CountByType returns the number of objects in sessionID whose
// Data["type"] equals typeKey, using the secondary type-index. Returns 0
// if the session or type is unknown.
func (o *ObjectRegistry) CountByType(sessionID, typeKey string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	byType, ok := o.typeIndex[sessionID]
	if !ok {
		return 0
	}
	return len(byType[typeKey])
}

// DropSession removes all bookkeeping the ObjectRegistry holds for a
// destroyed session. Called by the Hub Dispatcher once LeaveSession
// reports the session was destroyed.
func (o *ObjectRegistry) DropSession(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.typeIndex, sessionID)
}

// HandleMemberDeparture applies scope-based cleanup and ownership
// migration for every object owned by departingMemberID within
// sessionID.
//
//   - PerMember objects are deleted outright.
//   - PerSession objects with remaining members are reassigned: if
//     DistributeOrphanedObjects is set and there is more than one
//     remaining member, ownership round-robins across remainingMemberIDs
//     in order; otherwise every orphan goes to remainingMemberIDs[0].
//   - PerSession objects with no remaining members are left untouched --
//     the session is about to be destroyed by the caller.
func (o *ObjectRegistry) HandleMemberDeparture(sessionID, departingMemberID string, remainingMemberIDs []string) DepartureEffects {
	session := o.sessions.GetSession(sessionID)
	if session == nil {
		return DepartureEffects{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var effects DepartureEffects
	affected := make(map[string]struct{})

	// Deterministic iteration order so round-robin migration assignment
	// is reproducible within a single call.
	ids := make([]string, 0, len(session.Objects))
	for id, obj := range session.Objects {
		if obj.OwnerMemberID == departingMemberID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	orphanIdx := 0
	for _, id := range ids {
		obj := session.Objects[id]

		switch obj.Scope {
		case ScopePerMember:
			typ := obj.typeOf()
			delete(session.Objects, id)
			o.indexRemove(sessionID, typ, id)
			effects.DeletedIDs = append(effects.DeletedIDs, id)
			if typ != "" {
				affected[typ] = struct{}{}
			}

		case ScopePerSession:
			if len(remainingMemberIDs) == 0 {
				continue
			}
			var newOwner string
			if o.distributeOrphans && len(remainingMemberIDs) > 1 {
				newOwner = remainingMemberIDs[orphanIdx%len(remainingMemberIDs)]
				orphanIdx++
			} else {
				newOwner = remainingMemberIDs[0]
			}
			obj.OwnerMemberID = newOwner
			obj.Version++
			obj.UpdatedAt = time.Now()
			effects.Migrations = append(effects.Migrations, ObjectMigration{ObjectID: id, NewOwnerID: newOwner})
		}
	}

	for typ := range affected {
		effects.AffectedTypes = append(effects.AffectedTypes, typ)
	}
	slices.Sort(effects.AffectedTypes)

	return effects
}
