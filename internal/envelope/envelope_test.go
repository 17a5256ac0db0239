package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFraming(t *testing.T) {
	e := Token(AssistantToken, "hello")
	out := EncodeString(e)
	assert.Equal(t, "data: {\"token\":\"hello\",\"type\":\"assistant_token\"}\n\n", out)
}

func TestEncodeMergesExtraFields(t *testing.T) {
	e := Plain(AssistantToolCallStart, map[string]any{"tool_name": "save_memory"})
	out := EncodeString(e)

	var decoded map[string]any
	body := out[len("data: ") : len(out)-2]
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, AssistantToolCallStart, decoded["type"])
	assert.Equal(t, "save_memory", decoded["tool_name"])
	_, hasToken := decoded["token"]
	assert.False(t, hasToken)
}

func TestNeverLeaksThinkMarkerInToken(t *testing.T) {
	assert.True(t, ContainsThinkMarker("<think>reasoning"))
	assert.True(t, ContainsThinkMarker("trailing</think>"))
	assert.False(t, ContainsThinkMarker("plain text"))
}

func TestErrorEnvelope(t *testing.T) {
	e := ErrorEnvelope(errors.New("boom"))
	assert.Equal(t, Error, e.Type)
	assert.Equal(t, "boom", e.Extra["message"])
}

func TestEncodeNeverPanicsOnUnmarshalableExtra(t *testing.T) {
	e := Plain(Error, map[string]any{"bad": make(chan int)})
	out := EncodeString(e)
	assert.Contains(t, out, "envelope encoding failed")
}
