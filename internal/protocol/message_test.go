package protocol

import (
	"encoding/json"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unmarshalRaw(raw json.RawMessage, v any) error {
	return sonic.Unmarshal(raw, v)
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want Kind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, KindRequest},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"error response", `{"jsonrpc":"2.0","id":2,"error":{"code":-32603,"message":"boom"}}`, KindResponse},
		{"notification", `{"jsonrpc":"2.0","method":"ui/message","params":{}}`, KindNotification},
		{"neither", `{"jsonrpc":"2.0"}`, KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Kind())
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not json at all")
	assert.Error(t, err)
}

func TestRequestRoundTrip(t *testing.T) {
	msg, err := NewRequest(7, MethodInitialize, InitializeParams{
		HostContext: HostContext{InstanceID: "abc", DisplayMode: "inline", Theme: "dark"},
		ToolName:    "get_weather",
	})
	require.NoError(t, err)

	wire, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, KindRequest, decoded.Kind())
	assert.Equal(t, MethodInitialize, decoded.Method)

	id, ok := decoded.NumericID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	var params InitializeParams
	require.NoError(t, unmarshalRaw(decoded.Params, &params))
	assert.Equal(t, "abc", params.HostContext.InstanceID)
	assert.Equal(t, "get_weather", params.ToolName)
}

func TestNotificationHasNoID(t *testing.T) {
	msg, err := NewNotification(MethodSizeChanged, SizeChangedParams{Height: 300})
	require.NoError(t, err)

	wire, err := msg.Encode()
	require.NoError(t, err)
	assert.NotContains(t, wire, `"id"`)

	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, KindNotification, decoded.Kind())
}

func TestErrorResponseEchoesID(t *testing.T) {
	resp := NewErrorResponse(float64(12), CodeMethodNotFound, "method not found: nope")
	wire, err := resp.Encode()
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, KindResponse, decoded.Kind())
	require.NotNil(t, decoded.Error)
	assert.Equal(t, CodeMethodNotFound, decoded.Error.Code)

	id, ok := decoded.NumericID()
	require.True(t, ok)
	assert.Equal(t, int64(12), id)
}

func TestNumericIDRejectsNonIntegers(t *testing.T) {
	msg := &Message{ID: "string-id"}
	_, ok := msg.NumericID()
	assert.False(t, ok)

	msg = &Message{ID: 1.5}
	_, ok = msg.NumericID()
	assert.False(t, ok)
}
