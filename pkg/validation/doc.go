// Package validation provides input validation for JSON-RPC requests
// handled by the lobby hub server.
//
// This package ensures all user inputs are sanitized and validated before
// the Hub Dispatcher acts on them, preventing malformed payloads and
// denial-of-service conditions from oversized requests.
//
// # Creating a Validator
//
// Create an InputValidator with a maximum request size limit:
//
//	validator := validation.NewInputValidator(1024 * 1024) // 1MB limit
//
// # Validating Requests
//
// Validate incoming JSON-RPC requests before processing:
//
//	err := validator.ValidateRPCRequest(method, params, requestSize)
//	if err != nil {
//	    return fmt.Errorf("invalid request: %w", err)
//	}
//
// # Supported Methods
//
// Lobby lifecycle:
//   - CreateSession, JoinSession, LeaveSession, GetActiveSessions, StartGame
//
// Object registry:
//   - CreateObject, UpdateObjects, DeleteObject
//
// Opaque relay RPCs (payload passed through unvalidated beyond shape):
//   - ReportBulletHit, ConfirmBulletHit, RejectBulletHit, ReportShipHit, ReportScore
//
// # Validation Rules
//
//   - Identifiers (sessionId, objectId, ownerMemberId): non-empty, bounded length
//   - scope: must be "per_member" or "per_session"
//   - aspectRatio: must be numeric when present; out-of-range values are
//     clamped by the lobby registry, not rejected here
//   - updates: a bounded-size array of {objectId, data, expectedVersion}
package validation
