// Package lobby implements the in-memory, concurrent state machine that
// coordinates a small-scale real-time multiplayer game lobby: session
// lifecycle, membership, authority election, and per-session synchronized
// objects.
//
// The package is transport-agnostic. It exposes three collaborating
// services:
//
//   - NamingPool allocates unique human-readable session names.
//   - SessionRegistry owns sessions and members, the connection/member
//     indexes, and authority promotion on departure.
//   - ObjectRegistry owns per-session synchronized objects, optimistic
//     versioning, and ownership migration on member departure.
//
// Callers (typically a WebSocket hub) are responsible for translating
// transport events into calls against these services and fanning out the
// resulting state deltas; lobby itself never touches a network connection.
package lobby
