package lobby

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// RegistryOptions configures capacity and behavior of a SessionRegistry.
type RegistryOptions struct {
	// MaxSessions caps the number of concurrently non-empty sessions.
	MaxSessions int

	// MaxMembersPerSession caps membership of a single session.
	MaxMembersPerSession int

	// DistributeOrphanedObjects is consumed by the Object Registry via
	// HandleMemberDeparture; it is carried here because it is part of the
	// same options struct the transport passes at startup.
	DistributeOrphanedObjects bool

	// NamingPoolOverride, when non-empty, replaces the embedded default
	// candidate list -- typically populated from config.LoadNamingPool at
	// startup.
	NamingPoolOverride []string
}

// DefaultRegistryOptions returns the spec-mandated defaults.
func DefaultRegistryOptions() RegistryOptions {
	return RegistryOptions{
		MaxSessions:               6,
		MaxMembersPerSession:      4,
		DistributeOrphanedObjects: true,
	}
}

// SessionRegistry owns the live session set, its membership, and the
// connection/member reverse indexes.
//
// mu is the single registry-wide mutex: every mutation of r.sessions, a
// Session's Members map, Version, or GameStarted happens in a short
// critical section under mu. Authority promotion additionally takes a
// per-session promotion lock around its (re-checked) mutation. Inside
// that lock, the re-check, the random pick of the new authority and the
// role change all run while mu is held as well.
type SessionRegistry struct {
	opts RegistryOptions
	pool *NamingPool

	mu       sync.Mutex
	sessions map[string]*Session // sessionId -> Session
	connIdx  map[string]string   // connectionId -> memberId
	memIdx   map[string]string   // memberId -> sessionId

	promoMu sync.Mutex
	promo   map[string]*sync.Mutex // sessionId -> promotion lock
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry(opts RegistryOptions) *SessionRegistry {
	return &SessionRegistry{
		opts:     opts,
		pool:     NewNamingPoolFromNames(opts.NamingPoolOverride),
		sessions: make(map[string]*Session),
		connIdx:  make(map[string]string),
		memIdx:   make(map[string]string),
		promo:    make(map[string]*sync.Mutex),
	}
}

// usedNames returns the set of names currently held by live sessions.
// Callers must hold r.mu.
func (r *SessionRegistry) usedNames() map[string]struct{} {
	used := make(map[string]struct{}, len(r.sessions))
	for _, s := range r.sessions {
		used[s.Name] = struct{}{}
	}
	return used
}

// CreateSession allocates a new session with connectionId as its sole
// member, holding the role of Authority.
//
// Fails with ErrAlreadyInSession if connectionId is already bound to a
// live member, or ErrCapacityReached if the number of non-empty sessions
// has reached opts.MaxSessions.
func (r *SessionRegistry) CreateSession(connectionID string, aspectRatio float64) (*Session, *Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connIdx[connectionID]; exists {
		return nil, nil, ErrAlreadyInSession
	}
	if len(r.sessions) >= r.opts.MaxSessions {
		return nil, nil, ErrCapacityReached
	}

	name := r.pool.Allocate(r.usedNames())

	session := &Session{
		ID:          uuid.New().String(),
		Name:        name,
		CreatedAt:   time.Now(),
		AspectRatio: clampAspectRatio(aspectRatio),
		GameStarted: false,
		Version:     1,
		Members:     make(map[string]*Member),
		Objects:     make(map[string]*Object),
	}

	member := &Member{
		ID:           uuid.New().String(),
		SessionID:    session.ID,
		ConnectionID: connectionID,
		Role:         RoleAuthority,
		JoinedAt:     time.Now(),
	}

	session.Members[member.ID] = member
	r.sessions[session.ID] = session
	r.connIdx[connectionID] = member.ID
	r.memIdx[member.ID] = session.ID

	return session, member, nil
}

// JoinSession adds connectionId to sessionId as a Participant.
//
// Fails with ErrAlreadyInSession, ErrNotFound, or ErrSessionFull per
// spec.md 4.B.2.
func (r *SessionRegistry) JoinSession(sessionID, connectionID string) (*Session, *Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connIdx[connectionID]; exists {
		return nil, nil, ErrAlreadyInSession
	}

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if len(session.Members) >= r.opts.MaxMembersPerSession {
		return nil, nil, ErrSessionFull
	}

	member := &Member{
		ID:           uuid.New().String(),
		SessionID:    session.ID,
		ConnectionID: connectionID,
		Role:         RoleParticipant,
		JoinedAt:     time.Now(),
	}

	session.Members[member.ID] = member
	r.connIdx[connectionID] = member.ID
	r.memIdx[member.ID] = session.ID

	return session, member, nil
}

// sessionPromotionLock returns (creating if necessary) the promotion lock
// for sessionID.
func (r *SessionRegistry) sessionPromotionLock(sessionID string) *sync.Mutex {
	r.promoMu.Lock()
	defer r.promoMu.Unlock()

	l, ok := r.promo[sessionID]
	if !ok {
		l = &sync.Mutex{}
		r.promo[sessionID] = l
	}
	return l
}

// dropPromotionLock removes the promotion lock bookkeeping for a
// destroyed session to avoid an unbounded map.
func (r *SessionRegistry) dropPromotionLock(sessionID string) {
	r.promoMu.Lock()
	defer r.promoMu.Unlock()
	delete(r.promo, sessionID)
}

// LeaveSession removes the member bound to connectionID, promotes a new
// Authority if needed, and destroys the session if it becomes empty.
//
// Returns (nil, nil) if connectionID is not bound to any live member --
// this makes the flow idempotent for the disconnect/explicit-leave race
// described in spec.md 9. The second return value lists the ids of the
// members remaining in the session after departure (empty if destroyed).
func (r *SessionRegistry) LeaveSession(connectionID string) (*DepartureResult, []string) {
	r.mu.Lock()
	memberID, ok := r.connIdx[connectionID]
	if !ok {
		r.mu.Unlock()
		return nil, nil
	}
	sessionID, ok := r.memIdx[memberID]
	if !ok {
		r.mu.Unlock()
		return nil, nil
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, nil
	}

	departing := session.Members[memberID]
	delete(r.connIdx, connectionID)
	delete(r.memIdx, memberID)
	delete(session.Members, memberID)
	wasAuthority := departing != nil && departing.Role == RoleAuthority
	r.mu.Unlock()

	var promotedID string
	if wasAuthority {
		lock := r.sessionPromotionLock(sessionID)
		lock.Lock()
		r.mu.Lock()
		if len(session.Members) > 0 && !hasAuthority(session) {
			promoted := pickRandomMember(session.Members)
			promoted.Role = RoleAuthority
			session.Version++
			promotedID = promoted.ID
		}
		r.mu.Unlock()
		lock.Unlock()
	}

	r.mu.Lock()
	destroyed := len(session.Members) == 0
	remaining := make([]string, 0, len(session.Members))
	for id := range session.Members {
		remaining = append(remaining, id)
	}
	if destroyed {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if destroyed {
		r.dropPromotionLock(sessionID)
	}

	return &DepartureResult{
		SessionID:        sessionID,
		SessionName:      session.Name,
		MemberID:         memberID,
		SessionDestroyed: destroyed,
		PromotedMemberID: promotedID,
	}, remaining
}

func hasAuthority(s *Session) bool {
	for _, m := range s.Members {
		if m.Role == RoleAuthority {
			return true
		}
	}
	return false
}

// pickRandomMember picks uniformly among members. Ids are sorted before
// the draw so the candidate order does not depend on map iteration; the
// draw itself uses math/rand/v2's global source, which tests cannot seed.
func pickRandomMember(members map[string]*Member) *Member {
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return members[ids[rand.IntN(len(ids))]]
}

// GetSession returns the live session by id, or nil. The returned
// pointer's Members/Objects maps must only be read by callers that hold
// no expectation of a stable snapshot -- use SessionExists/HasMember for
// point-in-time checks from other components.
func (r *SessionRegistry) GetSession(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// SessionExists reports whether sessionID currently names a live
// session.
func (r *SessionRegistry) SessionExists(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// HasMember reports whether memberID is currently a member of
// sessionID.
func (r *SessionRegistry) HasMember(sessionID, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	_, ok = session.Members[memberID]
	return ok
}

// GetMemberByConnection resolves a connection id to its member, or nil.
func (r *SessionRegistry) GetMemberByConnection(connectionID string) *Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberID, ok := r.connIdx[connectionID]
	if !ok {
		return nil
	}
	sessionID, ok := r.memIdx[memberID]
	if !ok {
		return nil
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	return session.Members[memberID]
}

// GetSessionByConnection resolves a connection id to its session, or
// nil.
func (r *SessionRegistry) GetSessionByConnection(connectionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberID, ok := r.connIdx[connectionID]
	if !ok {
		return nil
	}
	sessionID, ok := r.memIdx[memberID]
	if !ok {
		return nil
	}
	return r.sessions[sessionID]
}

// ListActiveSessions returns a snapshot of non-empty sessions sorted by
// creation time descending, alongside capacity information.
func (r *SessionRegistry) ListActiveSessions() ActiveSessionsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]ActiveSessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		if len(s.Members) == 0 {
			continue
		}
		summaries = append(summaries, ActiveSessionSummary{
			ID:          s.ID,
			Name:        s.Name,
			MemberCount: len(s.Members),
			MaxMembers:  r.opts.MaxMembersPerSession,
			CreatedAt:   s.CreatedAt,
			GameStarted: s.GameStarted,
		})
	}

	slices.SortFunc(summaries, func(a, b ActiveSessionSummary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return ActiveSessionsSnapshot{
		Sessions:         summaries,
		MaxSessions:      r.opts.MaxSessions,
		CanCreateSession: len(summaries) < r.opts.MaxSessions,
	}
}

// StartGame sets GameStarted on sessionId if callerMemberID is its
// Authority and the game has not already started.
func (r *SessionRegistry) StartGame(sessionID, callerMemberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	caller, ok := session.Members[callerMemberID]
	if !ok || caller.Role != RoleAuthority {
		return ErrNotAuthority
	}
	if session.GameStarted {
		return ErrAlreadyStarted
	}
	session.GameStarted = true
	return nil
}
