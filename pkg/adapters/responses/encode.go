package responses

import (
	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// EncodeRequest renders req as a Responses API request body, for sending
// upstream to a Responses provider.
func EncodeRequest(req urp.Request) map[string]any {
	out := map[string]any{
		"model": req.Model,
		"input": encodeInput(req.Messages),
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
		out["max_output_tokens"] = *req.MaxOutputTokens
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		out["reasoning"] = map[string]any{"effort": req.Reasoning.Effort}
	}
	if req.User != "" {
		out["user"] = req.User
	}
	if len(req.Tools) > 0 {
		var tools []any
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"type":        "function",
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Schema,
				"strict":      t.Strict,
			})
		}
		out["tools"] = tools
	}
	if req.ToolChoice != nil {
		out["tool_choice"] = encodeToolChoice(*req.ToolChoice)
	}
	if req.ResponseFormat != nil {
		out["text"] = map[string]any{"format": encodeResponseFormat(*req.ResponseFormat)}
	}
	shared.MergeExtra(out, req.ExtraBody)
	return out
}

func encodeToolChoice(tc urp.ToolChoice) any {
	if tc.ForcedToolName != "" {
		return map[string]any{"type": "function", "name": tc.ForcedToolName}
	}
	return string(tc.Mode)
}

func encodeResponseFormat(rf urp.ResponseFormat) map[string]any {
	switch rf.Type {
	case urp.ResponseFormatJSONObject:
		return map[string]any{"type": "json_object"}
	case urp.ResponseFormatJSONSchema:
		return map[string]any{
			"type":   "json_schema",
			"name":   rf.Name,
			"schema": rf.Schema,
			"strict": rf.Strict,
		}
	default:
		return map[string]any{"type": "text"}
	}
}

func encodeInput(messages []urp.Message) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, encodeInputItem(m)...)
	}
	return out
}

// encodeInputItem can emit more than one item for a single Message: each
// tool call becomes its own function_call item. A message carrying a tool
// result becomes a single function_call_output item whose output is the
// text of its first content part; any further content parts are dropped.
func encodeInputItem(m urp.Message) []any {
	var items []any
	var content []any
	var toolResultCallID string

	for _, p := range m.Parts {
		switch part := p.(type) {
		case urp.TextPart:
			content = append(content, map[string]any{"type": contentTypeFor(m.Role), "text": part.Content})
		case urp.ImagePart:
			content = append(content, map[string]any{"type": "input_image", "image_url": mediaRefToURL(part.Ref)})
		case urp.FilePart:
			content = append(content, map[string]any{
				"type":      "input_file",
				"file_data": part.Ref.Base64,
				"filename":  part.Ref.Filename,
			})
		case urp.RefusalPart:
			content = append(content, map[string]any{"type": "refusal", "refusal": part.Content})
		case urp.ToolCallPart:
			items = append(items, map[string]any{
				"type":      "function_call",
				"call_id":   part.CallID,
				"name":      part.Name,
				"arguments": part.Arguments,
			})
		case urp.ToolResultPart:
			toolResultCallID = part.CallID
		}
	}

	if toolResultCallID != "" {
		output := ""
		if len(content) > 0 {
			if t, ok := content[0].(map[string]any); ok {
				output, _ = t["text"].(string)
			}
		}
		items = append(items, map[string]any{
			"type":    "function_call_output",
			"call_id": toolResultCallID,
			"output":  output,
		})
		return items
	}

	if len(content) > 0 {
		items = append(items, map[string]any{
			"type":    "message",
			"role":    roleFromURP(m.Role),
			"content": content,
		})
	}
	return items
}

func contentTypeFor(role urp.Role) string {
	if role == urp.RoleAssistant {
		return "output_text"
	}
	return "input_text"
}

func mediaRefToURL(ref urp.MediaRef) string {
	if ref.URL != "" {
		return ref.URL
	}
	return ref.Base64
}

// DecodeResponse parses a non-streaming Responses API response body into
// URP.
func DecodeResponse(body map[string]any, policy config.UnknownFieldPolicy) (urp.Response, error) {
	extra, err := shared.SplitExtra(body, responseKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Response{}, err
	}

	resp := urp.Response{
		ID:           asString(body["id"]),
		Model:        asString(body["model"]),
		FinishReason: urp.FinishStop,
		Extra:        urp.Extra(extra),
	}

	msg := urp.Message{Role: urp.RoleAssistant}
	sawToolCall := false
	for _, o := range asSlice(body["output"]) {
		om := asMap(o)
		switch asString(om["type"]) {
		case "message":
			for _, c := range asSlice(om["content"]) {
				cm := asMap(c)
				switch asString(cm["type"]) {
				case "output_text":
					msg.Parts = append(msg.Parts, urp.TextPart{Content: asString(cm["text"])})
				case "refusal":
					msg.Parts = append(msg.Parts, urp.RefusalPart{Content: asString(cm["refusal"])})
				}
			}
		case "reasoning":
			if sig := asString(om["signature"]); sig != "" {
				msg.Parts = append(msg.Parts, urp.ReasoningEncryptedPart{Data: sig})
			} else if id := asString(om["id"]); id != "" && asString(om["text"]) == "" && len(asSlice(om["summary"])) == 0 {
				msg.Parts = append(msg.Parts, urp.ReasoningEncryptedPart{Data: id})
			}
			if text := asString(om["text"]); text != "" {
				msg.Parts = append(msg.Parts, urp.ReasoningPart{Content: text})
			}
			for _, s := range asSlice(om["summary"]) {
				sm := asMap(s)
				msg.Parts = append(msg.Parts, urp.ReasoningPart{Content: asString(sm["text"])})
			}
		case "function_call":
			sawToolCall = true
			msg.Parts = append(msg.Parts, urp.ToolCallPart{
				CallID:    asString(om["call_id"]),
				Name:      asString(om["name"]),
				Arguments: asString(om["arguments"]),
			})
		}
	}

	if sawToolCall {
		resp.FinishReason = urp.FinishToolCalls
	}
	if status := asString(body["status"]); status == "incomplete" {
		if details := asMap(body["incomplete_details"]); asString(details["reason"]) == "max_output_tokens" {
			resp.FinishReason = urp.FinishLength
		}
	}

	resp.Message = msg

	if u := asMap(body["usage"]); u != nil {
		resp.Usage = decodeUsage(u)
	}

	return resp, nil
}

func decodeUsage(u map[string]any) *urp.Usage {
	usage := &urp.Usage{}
	if v, ok := asFloat(u["input_tokens"]); ok {
		usage.PromptTokens = int64(v)
	}
	if v, ok := asFloat(u["output_tokens"]); ok {
		usage.CompletionTokens = int64(v)
	}
	if details := asMap(u["output_tokens_details"]); details != nil {
		if v, ok := asFloat(details["reasoning_tokens"]); ok {
			usage.ReasoningTokens = urp.Int64Ptr(int64(v))
		}
	}
	if details := asMap(u["input_tokens_details"]); details != nil {
		if v, ok := asFloat(details["cached_tokens"]); ok {
			usage.CachedTokens = urp.Int64Ptr(int64(v))
		}
	}
	return usage
}

// EncodeResponse renders resp as a Responses API response body, for the
// final reply to a client whose downstream shape is Responses.
func EncodeResponse(resp urp.Response) map[string]any {
	out := map[string]any{
		"id":     resp.ID,
		"object": "response",
		"model":  resp.Model,
		"status": "completed",
		"output": encodeOutput(resp.Message),
	}
	if resp.FinishReason == urp.FinishLength {
		out["status"] = "incomplete"
		out["incomplete_details"] = map[string]any{"reason": "max_output_tokens"}
	}
	if resp.Usage != nil {
		out["usage"] = encodeUsage(*resp.Usage)
	}
	shared.MergeExtra(out, resp.Extra)
	return out
}

func encodeOutput(msg urp.Message) []any {
	var out []any
	var content []any

	flushMessage := func() {
		if len(content) > 0 {
			out = append(out, map[string]any{"type": "message", "role": "assistant", "content": content})
			content = nil
		}
	}

	for _, p := range msg.Parts {
		switch part := p.(type) {
		case urp.TextPart:
			content = append(content, map[string]any{"type": "output_text", "text": part.Content})
		case urp.RefusalPart:
			content = append(content, map[string]any{"type": "refusal", "refusal": part.Content})
		case urp.ReasoningPart:
			flushMessage()
			out = append(out, map[string]any{"type": "reasoning", "text": part.Content})
		case urp.ReasoningEncryptedPart:
			flushMessage()
			sig, _ := part.Data.(string)
			out = append(out, map[string]any{"type": "reasoning", "signature": sig})
		case urp.ToolCallPart:
			flushMessage()
			out = append(out, map[string]any{
				"type":      "function_call",
				"call_id":   part.CallID,
				"name":      part.Name,
				"arguments": part.Arguments,
			})
		}
	}
	flushMessage()
	return out
}

func encodeUsage(u urp.Usage) map[string]any {
	out := map[string]any{
		"input_tokens":  u.PromptTokens,
		"output_tokens": u.CompletionTokens,
		"total_tokens":  u.PromptTokens + u.CompletionTokens,
	}
	if u.ReasoningTokens != nil {
		out["output_tokens_details"] = map[string]any{"reasoning_tokens": *u.ReasoningTokens}
	}
	if u.CachedTokens != nil {
		out["input_tokens_details"] = map[string]any{"cached_tokens": *u.CachedTokens}
	}
	shared.MergeExtra(out, u.Extra)
	return out
}
