package lobby

import "time"

// Role identifies a Member's standing within a Session. Exactly one
// member of a live session holds RoleAuthority at any time.
type Role string

const (
	// RoleAuthority designates the member the other members defer to for
	// authoritative game state. Replaces the source term "Server" to avoid
	// overloading the word.
	RoleAuthority Role = "authority"

	// RoleParticipant designates a non-authority member.
	RoleParticipant Role = "participant"
)

// Scope controls an Object's lifetime with respect to its owner.
type Scope string

const (
	// ScopePerMember objects are deleted when their owner departs.
	ScopePerMember Scope = "per_member"

	// ScopePerSession objects survive owner departure; ownership migrates
	// to a remaining member instead.
	ScopePerSession Scope = "per_session"
)

// Aspect ratio bounds enforced by CreateSession. Values outside this range
// are clamped rather than rejected.
const (
	MinAspectRatio = 0.25
	MaxAspectRatio = 4.0
)

// Member is a single connected participant of a Session.
//
// ConnectionId is the transport's stable connection identifier and is
// unique across all live members. SessionId is a lookup key, not a
// pointer -- it never implies the session's lifetime.
type Member struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	ConnectionID string    `json:"connectionId"`
	Role         Role      `json:"role"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Session is the authoritative record of one live lobby. Members and
// Objects are keyed by id; callers must never retain a Session pointer
// across a registry mutation without re-fetching it.
type Session struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	CreatedAt   time.Time          `json:"createdAt"`
	AspectRatio float64            `json:"aspectRatio"`
	GameStarted bool               `json:"gameStarted"`
	Version     uint64             `json:"version"`
	Members     map[string]*Member `json:"members"`
	Objects     map[string]*Object `json:"objects"`
}

// Object is a piece of state shared between the members of a session.
// Data is treated as opaque by the registry except for the "type" key,
// which feeds the type-index used by CountByType.
type Object struct {
	ID              string                 `json:"id"`
	SessionID       string                 `json:"sessionId"`
	CreatorMemberID string                 `json:"creatorMemberId"`
	OwnerMemberID   string                 `json:"ownerMemberId"`
	Scope           Scope                  `json:"scope"`
	Data            map[string]interface{} `json:"data"`
	Version         uint64                 `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// typeOf returns the value of the special "type" data key, or "" if unset
// or not a string.
func (o *Object) typeOf() string {
	return o.DataType()
}

// DataType returns the value of the special "type" data key, or "" if
// unset or not a string. Exported for the Hub Dispatcher, which needs it
// to decide when to emit the type-transition events of spec.md 4.D.6.
func (o *Object) DataType() string {
	if o == nil || o.Data == nil {
		return ""
	}
	t, _ := o.Data["type"].(string)
	return t
}

// clampAspectRatio clamps r into [MinAspectRatio, MaxAspectRatio]. NaN is
// clamped to MinAspectRatio, a defined, deterministic sentinel.
func clampAspectRatio(r float64) float64 {
	if r != r { // NaN
		return MinAspectRatio
	}
	if r < MinAspectRatio {
		return MinAspectRatio
	}
	if r > MaxAspectRatio {
		return MaxAspectRatio
	}
	return r
}

// ActiveSessionSummary is the per-session row returned by
// SessionRegistry.ListActiveSessions.
type ActiveSessionSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"memberCount"`
	MaxMembers  int       `json:"maxMembers"`
	CreatedAt   time.Time `json:"createdAt"`
	GameStarted bool      `json:"gameStarted"`
}

// ActiveSessionsSnapshot is the full result of ListActiveSessions.
type ActiveSessionsSnapshot struct {
	Sessions         []ActiveSessionSummary `json:"sessions"`
	MaxSessions      int                    `json:"maxSessions"`
	CanCreateSession bool                   `json:"canCreateSession"`
}

// DepartureResult describes the outcome of a successful LeaveSession call.
type DepartureResult struct {
	SessionID        string
	SessionName      string
	MemberID         string
	SessionDestroyed bool
	PromotedMemberID string // empty when no promotion occurred
}
