package messages

import (
	"encoding/json"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// EncodeRequest renders req as a Messages API request body, for sending
// upstream to a Messages provider. Any leading system message in req is
// lifted out into the top-level "system" field (the inverse of
// DecodeRequest's synthetic-system-message merge).
func EncodeRequest(req urp.Request) map[string]any {
	messages := req.Messages
	out := map[string]any{"model": req.Model}

	if len(messages) > 0 && messages[0].Role == urp.RoleSystem {
		out["system"] = textContentOf(messages[0])
		messages = messages[1:]
	}

	out["messages"] = encodeMessages(messages)

	if req.Stream {
		out["stream"] = true
	}
	if req.Temperature != nil {
		out["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		out["top_p"] = *req.TopP
	}
	if req.MaxOutputTokens != nil {
		out["max_tokens"] = *req.MaxOutputTokens
	} else {
		out["max_tokens"] = int64(4096)
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" && req.Reasoning.Effort != "none" {
		out["thinking"] = map[string]any{"type": "enabled", "budget_tokens": effortBudget(req.Reasoning.Effort)}
	}
	if len(req.Tools) > 0 {
		var tools []any
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Schema,
			})
		}
		out["tools"] = tools
	}
	if req.ToolChoice != nil {
		out["tool_choice"] = encodeToolChoice(*req.ToolChoice)
	}
	shared.MergeExtra(out, req.ExtraBody)
	return out
}

func effortBudget(effort string) int64 {
	switch effort {
	case "minimum":
		return 1024
	case "low":
		return 2048
	case "medium":
		return 4096
	case "xhigh":
		return 16384
	default:
		return 8192
	}
}

func encodeToolChoice(tc urp.ToolChoice) map[string]any {
	if tc.ForcedToolName != "" {
		return map[string]any{"type": "tool", "name": tc.ForcedToolName}
	}
	switch tc.Mode {
	case urp.ToolChoiceNone:
		return map[string]any{"type": "none"}
	case urp.ToolChoiceRequired:
		return map[string]any{"type": "any"}
	default:
		return map[string]any{"type": "auto"}
	}
}

func textContentOf(m urp.Message) string {
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(urp.TextPart); ok {
			out += t.Content
		}
	}
	return out
}

func encodeMessages(messages []urp.Message) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, encodeMessage(m))
	}
	return out
}

func encodeMessage(m urp.Message) map[string]any {
	role := "user"
	if m.Role == urp.RoleAssistant {
		role = "assistant"
	}

	var blocks []any
	for _, p := range m.Parts {
		switch part := p.(type) {
		case urp.TextPart:
			blocks = append(blocks, map[string]any{"type": "text", "text": part.Content})
		case urp.ImagePart:
			blocks = append(blocks, map[string]any{"type": "image", "source": mediaSource(part.Ref)})
		case urp.FilePart:
			blocks = append(blocks, map[string]any{"type": "text", "text": "[file:" + part.Ref.Filename + "]"})
		case urp.ReasoningPart:
			blocks = append(blocks, map[string]any{"type": "thinking", "thinking": part.Content})
		case urp.ReasoningEncryptedPart:
			blocks = append(blocks, map[string]any{"type": "redacted_thinking", "data": part.Data})
		case urp.ToolCallPart:
			var input any
			_ = json.Unmarshal([]byte(part.Arguments), &input)
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    part.CallID,
				"name":  part.Name,
				"input": input,
			})
		case urp.ToolResultPart:
			role = "user"
			blocks = append(blocks, map[string]any{
				"type":        "tool_result",
				"tool_use_id": part.CallID,
				"is_error":    part.IsError,
			})
		}
	}

	return map[string]any{"role": role, "content": blocks}
}

func mediaSource(ref urp.MediaRef) map[string]any {
	if ref.URL != "" {
		return map[string]any{"type": "url", "url": ref.URL}
	}
	return map[string]any{"type": "base64", "media_type": ref.MimeType, "data": ref.Base64}
}

// DecodeResponse parses a non-streaming Messages API response body into
// URP.
func DecodeResponse(body map[string]any, policy config.UnknownFieldPolicy) (urp.Response, error) {
	extra, err := shared.SplitExtra(body, responseKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Response{}, err
	}

	resp := urp.Response{
		ID:           asString(body["id"]),
		Model:        asString(body["model"]),
		FinishReason: finishReasonToURP(asString(body["stop_reason"])),
		Extra:        urp.Extra(extra),
	}

	msg := urp.Message{Role: urp.RoleAssistant}
	for _, b := range asSlice(body["content"]) {
		part, _ := decodeBlock(asMap(b))
		msg.Parts = append(msg.Parts, part)
	}
	resp.Message = msg

	if u := asMap(body["usage"]); u != nil {
		resp.Usage = decodeUsage(u)
	}

	return resp, nil
}

func finishReasonToURP(sr string) urp.FinishReason {
	switch sr {
	case "end_turn", "stop_sequence":
		return urp.FinishStop
	case "max_tokens":
		return urp.FinishLength
	case "tool_use":
		return urp.FinishToolCalls
	default:
		return urp.FinishOther
	}
}

func finishReasonFromURP(fr urp.FinishReason) string {
	switch fr {
	case urp.FinishStop:
		return "end_turn"
	case urp.FinishLength:
		return "max_tokens"
	case urp.FinishToolCalls:
		return "tool_use"
	default:
		return "end_turn"
	}
}

func decodeUsage(u map[string]any) *urp.Usage {
	usage := &urp.Usage{}
	if v, ok := asFloat(u["input_tokens"]); ok {
		usage.PromptTokens = int64(v)
	}
	if v, ok := asFloat(u["output_tokens"]); ok {
		usage.CompletionTokens = int64(v)
	}
	if v, ok := asFloat(u["cache_read_input_tokens"]); ok {
		usage.CachedTokens = urp.Int64Ptr(int64(v))
	}
	return usage
}

// EncodeResponse renders resp as a Messages API response body, for the
// final reply to a client whose downstream shape is Messages.
func EncodeResponse(resp urp.Response) map[string]any {
	out := map[string]any{
		"id":          resp.ID,
		"type":        "message",
		"role":        "assistant",
		"model":       resp.Model,
		"content":     encodeContentBlocks(resp.Message),
		"stop_reason": finishReasonFromURP(resp.FinishReason),
	}
	if resp.Usage != nil {
		out["usage"] = encodeUsage(*resp.Usage)
	}
	shared.MergeExtra(out, resp.Extra)
	return out
}

func encodeContentBlocks(m urp.Message) []any {
	var blocks []any
	for _, p := range m.Parts {
		switch part := p.(type) {
		case urp.TextPart:
			blocks = append(blocks, map[string]any{"type": "text", "text": part.Content})
		case urp.RefusalPart:
			blocks = append(blocks, map[string]any{"type": "text", "text": part.Content})
		case urp.ReasoningPart:
			blocks = append(blocks, map[string]any{"type": "thinking", "thinking": part.Content})
		case urp.ReasoningEncryptedPart:
			blocks = append(blocks, map[string]any{"type": "redacted_thinking", "data": part.Data})
		case urp.ToolCallPart:
			var input any
			_ = json.Unmarshal([]byte(part.Arguments), &input)
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    part.CallID,
				"name":  part.Name,
				"input": input,
			})
		}
	}
	return blocks
}

func encodeUsage(u urp.Usage) map[string]any {
	out := map[string]any{
		"input_tokens":  u.PromptTokens,
		"output_tokens": u.CompletionTokens,
	}
	if u.CachedTokens != nil {
		out["cache_read_input_tokens"] = *u.CachedTokens
	}
	shared.MergeExtra(out, u.Extra)
	return out
}
