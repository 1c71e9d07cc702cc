package gemini_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/adapters/gemini"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func TestSystemInstructionMergesToSyntheticMessage(t *testing.T) {
	body := map[string]any{
		"systemInstruction": map[string]any{"parts": []any{map[string]any{"text": "be terse"}}},
		"contents": []any{
			map[string]any{"role": "user", "parts": []any{map[string]any{"text": "hi"}}},
		},
	}
	req, err := gemini.DecodeRequest("gemini-2.5-pro", body, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, urp.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "gemini-2.5-pro", req.Model)
}

func TestFunctionCallRoundTrip(t *testing.T) {
	msg := urp.Message{
		Role: urp.RoleAssistant,
		Parts: []urp.Part{
			urp.ToolCallPart{CallID: "call_1", Name: "lookup", Arguments: `{"q":"x"}`},
		},
	}
	resp := urp.Response{Model: "gemini-2.5-pro", Message: msg, FinishReason: urp.FinishToolCalls}

	wire := gemini.EncodeResponse(resp)
	decoded, err := gemini.DecodeResponse(wire, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, decoded.Message.Parts, 1)
	tc := decoded.Message.Parts[0].(urp.ToolCallPart)
	assert.Equal(t, "lookup", tc.Name)
	assert.JSONEq(t, `{"q":"x"}`, tc.Arguments)
}

func TestThoughtPartRoundTrip(t *testing.T) {
	msg := urp.Message{
		Role: urp.RoleAssistant,
		Parts: []urp.Part{
			urp.ReasoningPart{Content: "thinking..."},
			urp.TextPart{Content: "answer"},
		},
	}
	resp := urp.Response{Model: "gemini-2.5-pro", Message: msg, FinishReason: urp.FinishStop}

	wire := gemini.EncodeResponse(resp)
	decoded, err := gemini.DecodeResponse(wire, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, decoded.Message.Parts, 2)
	assert.Equal(t, urp.ReasoningPart{Content: "thinking..."}, decoded.Message.Parts[0])
}
