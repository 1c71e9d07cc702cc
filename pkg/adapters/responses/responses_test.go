package responses_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/adapters/responses"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func TestDecodeRequestWithInstructionsAndInput(t *testing.T) {
	body := map[string]any{
		"model":        "gpt-5",
		"instructions": "be terse",
		"input": []any{
			map[string]any{
				"role":    "user",
				"content": []any{map[string]any{"type": "input_text", "text": "hi"}},
			},
		},
	}
	req, err := responses.DecodeRequest(body, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, urp.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, urp.RoleUser, req.Messages[1].Role)
}

func TestFunctionCallRoundTrip(t *testing.T) {
	msg := urp.Message{
		Role: urp.RoleAssistant,
		Parts: []urp.Part{
			urp.ToolCallPart{CallID: "call_1", Name: "lookup", Arguments: `{"q":"x"}`},
		},
	}
	resp := urp.Response{ID: "r1", Model: "gpt-5", Message: msg, FinishReason: urp.FinishToolCalls}
	wire := responses.EncodeResponse(resp)

	decoded, err := responses.DecodeResponse(wire, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, decoded.Message.Parts, 1)
	tc := decoded.Message.Parts[0].(urp.ToolCallPart)
	assert.Equal(t, "call_1", tc.CallID)
	assert.Equal(t, urp.FinishToolCalls, decoded.FinishReason)
}

func TestIncompleteLengthRoundTrip(t *testing.T) {
	resp := urp.Response{
		ID:           "r1",
		Model:        "gpt-5",
		Message:      urp.Message{Role: urp.RoleAssistant, Parts: []urp.Part{urp.TextPart{Content: "cut off"}}},
		FinishReason: urp.FinishLength,
	}
	wire := responses.EncodeResponse(resp)
	assert.Equal(t, "incomplete", wire["status"])

	decoded, err := responses.DecodeResponse(wire, config.PolicyPreserve)
	require.NoError(t, err)
	assert.Equal(t, urp.FinishLength, decoded.FinishReason)
}
