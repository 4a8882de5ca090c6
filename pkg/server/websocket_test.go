package server

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponse(t *testing.T) {
	tests := []struct {
		name   string
		id     interface{}
		result interface{}
	}{
		{"string id and result", "req-1", "ok"},
		{"numeric id with map result", 123, map[string]string{"status": "ok"}},
		{"nil id with slice result", nil, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewResponse(tt.id, tt.result)
			m, ok := resp.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "2.0", m["jsonrpc"])
			assert.Equal(t, tt.result, m["result"])
			assert.Equal(t, tt.id, m["id"])
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	err := assert.AnError
	resp := NewErrorResponse("req-1", err)
	m, ok := resp.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2.0", m["jsonrpc"])

	errObj, ok := m["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, JSONRPCInternalError, errObj["code"])
	assert.Equal(t, err.Error(), errObj["message"])
}

func TestNewErrorResponsePreservesJSONRPCErrorCode(t *testing.T) {
	rpcErr := NewJSONRPCError(JSONRPCRateLimited, "rate limit exceeded", nil)
	resp := NewErrorResponse("req-1", rpcErr)
	m, ok := resp.(map[string]interface{})
	require.True(t, ok)

	errObj, ok := m["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, JSONRPCRateLimited, errObj["code"])
	assert.Equal(t, "rate limit exceeded", errObj["message"])
}

func TestNewResponseJSONSerialization(t *testing.T) {
	resp := NewResponse("req-1", map[string]int{"count": 2})
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "req-1", decoded["id"])
}

func TestRPCRequestMarshalUnmarshal(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"CreateSession","params":{"aspectRatio":1.5},"id":7}`)
	var req RPCRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, "CreateSession", req.Method)
	assert.JSONEq(t, `{"aspectRatio":1.5}`, string(req.Params))
	assert.Equal(t, float64(7), req.ID)
}

func TestOrderHosts(t *testing.T) {
	hosts := map[string]string{
		"zeta.example.com": "",
		"alpha.example.com": "",
		"localhost":         "",
		"10.0.0.2":          "",
		"10.0.0.1":          "",
	}
	ordered := orderHosts(hosts)
	assert.Equal(t, []string{
		"alpha.example.com", "zeta.example.com",
		"localhost",
		"10.0.0.1", "10.0.0.2",
	}, ordered)
}

func TestOrderHosts_IgnoresUnparsableIPs(t *testing.T) {
	// net.ParseIP only classifies well-formed addresses; anything else
	// falls back into the hostname bucket.
	hosts := map[string]string{"not-an-ip": ""}
	ordered := orderHosts(hosts)
	require.Len(t, ordered, 1)
	assert.Equal(t, "not-an-ip", ordered[0])
	assert.Nil(t, net.ParseIP("not-an-ip"))
}
