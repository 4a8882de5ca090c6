package lobby

import "errors"

// Sentinel errors returned by the Session and Object registries. Callers
// (the Hub Dispatcher) translate these into the nullable/boolean RPC
// results the transport surface exposes; none of them are meant to
// propagate to a remote caller as a raw error.
var (
	// ErrAlreadyInSession is returned by CreateSession/JoinSession when the
	// calling connection is already bound to a live member.
	ErrAlreadyInSession = errors.New("lobby: connection already in a session")

	// ErrCapacityReached is returned by CreateSession when the number of
	// non-empty sessions has reached the configured maximum.
	ErrCapacityReached = errors.New("lobby: session capacity reached")

	// ErrSessionFull is returned by JoinSession when the target session has
	// reached its configured member limit.
	ErrSessionFull = errors.New("lobby: session is full")

	// ErrNotFound is returned when an operation references a session,
	// member, or object id that does not exist.
	ErrNotFound = errors.New("lobby: not found")

	// ErrVersionMismatch indicates an optimistic-concurrency failure: the
	// caller's expected object version did not match the stored version.
	// It is never surfaced to a caller as an error -- UpdateObject treats
	// it as a silent no-op.
	ErrVersionMismatch = errors.New("lobby: version mismatch")

	// ErrNotAuthority is returned by StartGame when the caller is not the
	// session's Authority member.
	ErrNotAuthority = errors.New("lobby: caller is not the authority")

	// ErrAlreadyStarted is returned by StartGame when the session's game
	// has already started.
	ErrAlreadyStarted = errors.New("lobby: game already started")
)
