package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInputValidator(t *testing.T) {
	validator := NewInputValidator(1024)

	assert.NotNil(t, validator)
	assert.Equal(t, int64(1024), validator.maxRequestSize)
	assert.NotEmpty(t, validator.validators)

	expectedMethods := []string{
		"CreateSession", "JoinSession", "LeaveSession", "GetActiveSessions", "StartGame",
		"CreateObject", "UpdateObjects", "DeleteObject",
		"ReportBulletHit", "ConfirmBulletHit", "RejectBulletHit", "ReportShipHit", "ReportScore",
	}

	for _, method := range expectedMethods {
		_, exists := validator.validators[method]
		assert.True(t, exists, "method %s should be registered", method)
	}
}

func TestValidateRPCRequest(t *testing.T) {
	validator := NewInputValidator(100)

	tests := []struct {
		name          string
		method        string
		params        interface{}
		requestSize   int64
		expectError   bool
		errorContains string
	}{
		{
			name:          "request too large",
			method:        "LeaveSession",
			params:        nil,
			requestSize:   200,
			expectError:   true,
			errorContains: "exceeds maximum",
		},
		{
			name:          "unknown method",
			method:        "unknownMethod",
			params:        nil,
			requestSize:   50,
			expectError:   true,
			errorContains: "unknown method",
		},
		{
			name:        "valid no-param request",
			method:      "GetActiveSessions",
			params:      nil,
			requestSize: 50,
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateRPCRequest(tt.method, tt.params, tt.requestSize)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCreateSession(t *testing.T) {
	validator := NewInputValidator(1024)

	tests := []struct {
		name          string
		params        interface{}
		expectError   bool
		errorContains string
	}{
		{
			name:        "no params",
			params:      nil,
			expectError: false,
		},
		{
			name:        "valid aspect ratio",
			params:      map[string]interface{}{"aspectRatio": 1.77},
			expectError: false,
		},
		{
			name:          "non-numeric aspect ratio",
			params:        map[string]interface{}{"aspectRatio": "wide"},
			expectError:   true,
			errorContains: "must be a number",
		},
		{
			name:          "non-object parameters",
			params:        "not an object",
			expectError:   true,
			errorContains: "expects object parameters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.validateCreateSession(tt.params)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateJoinSession(t *testing.T) {
	validator := NewInputValidator(1024)

	tests := []struct {
		name          string
		params        interface{}
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid session id",
			params:      map[string]interface{}{"sessionId": "abc123"},
			expectError: false,
		},
		{
			name:          "missing session id",
			params:        map[string]interface{}{},
			expectError:   true,
			errorContains: "requires 'sessionId'",
		},
		{
			name:          "non-string session id",
			params:        map[string]interface{}{"sessionId": 123},
			expectError:   true,
			errorContains: "must be a string",
		},
		{
			name:          "empty session id",
			params:        map[string]interface{}{"sessionId": ""},
			expectError:   true,
			errorContains: "cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.validateJoinSession(tt.params)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCreateObject(t *testing.T) {
	validator := NewInputValidator(1024)

	tests := []struct {
		name          string
		params        interface{}
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid per_member object",
			params:      map[string]interface{}{"scope": "per_member", "data": map[string]interface{}{"type": "bullet"}},
			expectError: false,
		},
		{
			name:        "valid per_session object with owner",
			params:      map[string]interface{}{"scope": "per_session", "ownerMemberId": "m-1"},
			expectError: false,
		},
		{
			name:          "missing scope",
			params:        map[string]interface{}{},
			expectError:   true,
			errorContains: "requires 'scope'",
		},
		{
			name:          "invalid scope",
			params:        map[string]interface{}{"scope": "global"},
			expectError:   true,
			errorContains: "invalid scope",
		},
		{
			name:          "non-object data",
			params:        map[string]interface{}{"scope": "per_member", "data": "nope"},
			expectError:   true,
			errorContains: "data must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.validateCreateObject(tt.params)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUpdateObjects(t *testing.T) {
	validator := NewInputValidator(1024)

	tests := []struct {
		name          string
		params        interface{}
		expectError   bool
		errorContains string
	}{
		{
			name: "valid single update",
			params: map[string]interface{}{
				"updates": []interface{}{
					map[string]interface{}{"objectId": "obj-1", "data": map[string]interface{}{"x": 1.0}},
				},
			},
			expectError: false,
		},
		{
			name:          "missing updates",
			params:        map[string]interface{}{},
			expectError:   true,
			errorContains: "requires 'updates'",
		},
		{
			name:          "empty updates",
			params:        map[string]interface{}{"updates": []interface{}{}},
			expectError:   true,
			errorContains: "at least one entry",
		},
		{
			name: "update missing objectId",
			params: map[string]interface{}{
				"updates": []interface{}{map[string]interface{}{}},
			},
			expectError:   true,
			errorContains: "requires 'objectId'",
		},
		{
			name: "non-numeric expectedVersion",
			params: map[string]interface{}{
				"updates": []interface{}{
					map[string]interface{}{"objectId": "obj-1", "expectedVersion": "one"},
				},
			},
			expectError:   true,
			errorContains: "expectedVersion must be a number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.validateUpdateObjects(tt.params)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDeleteObject(t *testing.T) {
	validator := NewInputValidator(1024)

	tests := []struct {
		name          string
		params        interface{}
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid object id",
			params:      map[string]interface{}{"objectId": "obj-1"},
			expectError: false,
		},
		{
			name:          "missing object id",
			params:        map[string]interface{}{},
			expectError:   true,
			errorContains: "requires 'objectId'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.validateDeleteObject(tt.params)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRelayPayload(t *testing.T) {
	validator := NewInputValidator(1024)

	assert.NoError(t, validator.validateRelayPayload(nil))
	assert.NoError(t, validator.validateRelayPayload(map[string]interface{}{"bulletId": "b-1"}))
	assert.Error(t, validator.validateRelayPayload("not an object"))
}

func TestValidateNonEmptyID(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		expectError bool
	}{
		{name: "valid id", id: "12345678-1234-1234-1234-123456789abc", expectError: false},
		{name: "valid short id", id: "abc123", expectError: false},
		{name: "empty id", id: "", expectError: true},
		{name: "id with invalid characters", id: "abc/../def", expectError: true},
		{name: "id too long", id: strings.Repeat("a", 65), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNonEmptyID(tt.id, "id")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateScope(t *testing.T) {
	assert.NoError(t, validateScope("per_member"))
	assert.NoError(t, validateScope("per_session"))
	assert.Error(t, validateScope("global"))
	assert.Error(t, validateScope(""))
}
