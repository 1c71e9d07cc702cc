package messages_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/adapters/messages"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func TestSystemFieldMergesToSyntheticMessage(t *testing.T) {
	body := map[string]any{
		"model":  "claude-opus",
		"system": "be concise",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	}
	req, err := messages.DecodeRequest(body, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, urp.RoleSystem, req.Messages[0].Role)
}

func TestEncodeRequestLiftsLeadingSystemMessage(t *testing.T) {
	req := urp.Request{
		Model: "claude-opus",
		Messages: []urp.Message{
			{Role: urp.RoleSystem, Parts: []urp.Part{urp.TextPart{Content: "be concise"}}},
			{Role: urp.RoleUser, Parts: []urp.Part{urp.TextPart{Content: "hi"}}},
		},
	}
	wire := messages.EncodeRequest(req)
	assert.Equal(t, "be concise", wire["system"])
	msgs := wire["messages"].([]any)
	require.Len(t, msgs, 1)
}

func TestThinkingBlockRoundTrip(t *testing.T) {
	msg := urp.Message{
		Role: urp.RoleAssistant,
		Parts: []urp.Part{
			urp.ReasoningPart{Content: "let me think"},
			urp.TextPart{Content: "the answer"},
		},
	}
	resp := urp.Response{ID: "msg_1", Model: "claude-opus", Message: msg, FinishReason: urp.FinishStop}

	wire := messages.EncodeResponse(resp)
	decoded, err := messages.DecodeResponse(wire, config.PolicyPreserve)
	require.NoError(t, err)
	require.Len(t, decoded.Message.Parts, 2)
	assert.Equal(t, urp.ReasoningPart{Content: "let me think"}, decoded.Message.Parts[0])
}

func TestToolUseRoundTrip(t *testing.T) {
	msg := urp.Message{
		Role: urp.RoleAssistant,
		Parts: []urp.Part{
			urp.ToolCallPart{CallID: "toolu_1", Name: "search", Arguments: `{"q":"go"}`},
		},
	}
	resp := urp.Response{ID: "msg_1", Model: "claude-opus", Message: msg, FinishReason: urp.FinishToolCalls}

	wire := messages.EncodeResponse(resp)
	assert.Equal(t, "tool_use", wire["stop_reason"])

	decoded, err := messages.DecodeResponse(wire, config.PolicyPreserve)
	require.NoError(t, err)
	tc := decoded.Message.Parts[0].(urp.ToolCallPart)
	assert.Equal(t, "toolu_1", tc.CallID)
	assert.JSONEq(t, `{"q":"go"}`, tc.Arguments)
}
