package server

import (
	"encoding/json"
	"fmt"

	"github.com/badvoidstar/astervoids/pkg/lobby"
)

// dispatch validates and routes one decoded JSON-RPC request to the Hub,
// returning the result payload to marshal into the response. Validation
// happens here, before any Hub call, so a malformed request never reaches
// the registries.
func (s *RPCServer) dispatch(conn *Connection, method RPCMethod, rawParams json.RawMessage) (interface{}, error) {
	params, err := decodeParams(rawParams)
	if err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if err := s.validator.ValidateRPCRequest(string(method), params, int64(len(rawParams))); err != nil {
		return nil, err
	}

	switch method {
	case MethodCreateSession:
		return s.hub.CreateSession(conn, aspectRatioOf(params)), nil

	case MethodJoinSession:
		sessionID, _ := params.(map[string]interface{})["sessionId"].(string)
		return s.hub.JoinSession(conn, sessionID), nil

	case MethodLeaveSession:
		s.hub.LeaveSession(conn)
		return nil, nil

	case MethodGetActiveSessions:
		return s.hub.GetActiveSessions(), nil

	case MethodStartGame:
		return s.hub.StartGame(conn), nil

	case MethodCreateObject:
		return s.handleCreateObject(conn, params)

	case MethodUpdateObjects:
		return s.handleUpdateObjects(conn, params)

	case MethodDeleteObject:
		objectID, _ := params.(map[string]interface{})["objectId"].(string)
		return s.hub.DeleteObject(conn, objectID), nil

	case MethodReportBulletHit, MethodConfirmBulletHit, MethodRejectBulletHit,
		MethodReportShipHit, MethodReportScore:
		payload, _ := params.(map[string]interface{})
		return s.hub.Relay(conn, method, payload), nil

	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

// decodeParams unmarshals raw JSON params into the generic shape the
// validators and handlers expect: nil for an absent/null params field, or
// a map[string]interface{}/[]interface{}/scalar per JSON's own rules.
func decodeParams(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func aspectRatioOf(params interface{}) float64 {
	m, ok := params.(map[string]interface{})
	if !ok {
		return 1.0
	}
	if v, ok := m["aspectRatio"].(float64); ok {
		return v
	}
	return 1.0
}

func (s *RPCServer) handleCreateObject(conn *Connection, params interface{}) (interface{}, error) {
	m := params.(map[string]interface{})

	scope := lobby.Scope(m["scope"].(string))

	var data map[string]interface{}
	if d, ok := m["data"].(map[string]interface{}); ok {
		data = d
	}

	var ownerMemberID *string
	if owner, ok := m["ownerMemberId"].(string); ok {
		ownerMemberID = &owner
	}

	return s.hub.CreateObject(conn, scope, data, ownerMemberID), nil
}

func (s *RPCServer) handleUpdateObjects(conn *Connection, params interface{}) (interface{}, error) {
	m := params.(map[string]interface{})
	rawUpdates := m["updates"].([]interface{})

	patches := make([]lobby.ObjectPatch, 0, len(rawUpdates))
	for _, raw := range rawUpdates {
		entry := raw.(map[string]interface{})

		patch := lobby.ObjectPatch{
			ObjectID: entry["objectId"].(string),
		}
		if data, ok := entry["data"].(map[string]interface{}); ok {
			patch.Data = data
		}
		if expected, ok := entry["expectedVersion"].(float64); ok {
			v := uint64(expected)
			patch.ExpectedVersion = &v
		}
		patches = append(patches, patch)
	}

	return s.hub.UpdateObjects(conn, patches), nil
}
