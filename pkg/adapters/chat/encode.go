package chat

import (
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// EncodeRequest renders req as a Chat Completions request body, for sending
// upstream to a Chat/Grok provider.
func EncodeRequest(req urp.Request) map[string]any {
	out := map[string]any{
		"model":    req.Model,
		"messages": encodeMessages(req.Messages),
	}
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
		out["max_completion_tokens"] = *req.MaxOutputTokens
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		out["reasoning_effort"] = req.Reasoning.Effort
	}
	if req.User != "" {
		out["user"] = req.User
	}
	if len(req.Tools) > 0 {
		var tools []any
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Schema,
					"strict":      t.Strict,
				},
			})
		}
		out["tools"] = tools
	}
	if req.ToolChoice != nil {
		out["tool_choice"] = encodeToolChoice(*req.ToolChoice)
	}
	if req.ResponseFormat != nil {
		out["response_format"] = encodeResponseFormat(*req.ResponseFormat)
	}
	shared.MergeExtra(out, req.ExtraBody)
	return out
}

func encodeToolChoice(tc urp.ToolChoice) any {
	if tc.ForcedToolName != "" {
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.ForcedToolName},
		}
	}
	return string(tc.Mode)
}

func encodeResponseFormat(rf urp.ResponseFormat) map[string]any {
	switch rf.Type {
	case urp.ResponseFormatJSONObject:
		return map[string]any{"type": "json_object"}
	case urp.ResponseFormatJSONSchema:
		return map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":        rf.Name,
				"description": rf.Description,
				"schema":      rf.Schema,
				"strict":      rf.Strict,
			},
		}
	default:
		return map[string]any{"type": "text"}
	}
}

func encodeMessages(messages []urp.Message) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, encodeMessage(m))
	}
	return out
}

func encodeMessage(m urp.Message) map[string]any {
	msg := map[string]any{"role": roleFromURP(m.Role)}

	var content []any
	var toolCalls []any
	var reasoningDetails []any

	for _, p := range m.Parts {
		switch part := p.(type) {
		case urp.TextPart:
			content = append(content, map[string]any{"type": "text", "text": part.Content})
		case urp.ImagePart:
			content = append(content, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": mediaRefToURL(part.Ref)},
			})
		case urp.FilePart:
			content = append(content, map[string]any{
				"type": "file",
				"file": map[string]any{"filename": part.Ref.Filename, "file_data": part.Ref.Base64},
			})
		case urp.ReasoningPart:
			reasoningDetails = append(reasoningDetails, map[string]any{"type": "reasoning.text", "text": part.Content})
		case urp.ReasoningEncryptedPart:
			reasoningDetails = append(reasoningDetails, map[string]any{"type": "reasoning.encrypted", "data": part.Data})
		case urp.RefusalPart:
			content = append(content, map[string]any{"type": "text", "text": part.Content})
		case urp.ToolCallPart:
			toolCalls = append(toolCalls, map[string]any{
				"id":   part.CallID,
				"type": "function",
				"function": map[string]any{
					"name":      part.Name,
					"arguments": part.Arguments,
				},
			})
		case urp.ToolResultPart:
			msg["tool_call_id"] = part.CallID
		}
	}

	if len(content) == 1 {
		if t, ok := content[0].(map[string]any); ok && t["type"] == "text" {
			msg["content"] = t["text"]
		} else {
			msg["content"] = content
		}
	} else if len(content) > 0 {
		msg["content"] = content
	} else if m.Role != urp.RoleTool || len(toolCalls) == 0 {
		msg["content"] = ""
	}

	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	if len(reasoningDetails) > 0 {
		msg["reasoning_details"] = reasoningDetails
	}

	shared.MergeExtra(msg, m.Extra)
	return msg
}

func mediaRefToURL(ref urp.MediaRef) string {
	if ref.URL != "" {
		return ref.URL
	}
	if ref.Base64 != "" {
		mime := ref.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		return fmt.Sprintf("data:%s;base64,%s", mime, ref.Base64)
	}
	return ""
}

// EncodeResponse renders resp as a Chat Completions response body, for the
// final reply to a client whose downstream shape is Chat.
func EncodeResponse(resp urp.Response) map[string]any {
	out := map[string]any{
		"id":      resp.ID,
		"object":  "chat.completion",
		"model":   resp.Model,
		"choices": []any{encodeChoice(resp)},
	}
	if resp.Usage != nil {
		out["usage"] = encodeUsage(*resp.Usage)
	}
	shared.MergeExtra(out, resp.Extra)
	return out
}

func encodeChoice(resp urp.Response) map[string]any {
	return map[string]any{
		"index":         0,
		"message":       encodeMessage(resp.Message),
		"finish_reason": finishReasonFromURP(resp.FinishReason),
	}
}

func encodeUsage(u urp.Usage) map[string]any {
	out := map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.PromptTokens + u.CompletionTokens,
	}
	if u.ReasoningTokens != nil {
		out["completion_tokens_details"] = map[string]any{"reasoning_tokens": *u.ReasoningTokens}
	}
	if u.CachedTokens != nil {
		out["prompt_tokens_details"] = map[string]any{"cached_tokens": *u.CachedTokens}
	}
	shared.MergeExtra(out, u.Extra)
	return out
}
