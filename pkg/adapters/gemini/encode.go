package gemini

import (
	"encoding/json"
	"errors"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

var errNoCandidates = errors.New("gemini: response has no candidates")

// EncodeRequest renders req as a Gemini generateContent request body (the
// model itself goes in the URL path, not the body — see pkg/upstream).
func EncodeRequest(req urp.Request) map[string]any {
	messages := req.Messages
	out := map[string]any{}

	if len(messages) > 0 && messages[0].Role == urp.RoleSystem {
		out["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": textContentOf(messages[0])}},
		}
		messages = messages[1:]
	}

	out["contents"] = encodeContents(messages)

	gc := map[string]any{}
	if req.Temperature != nil {
		gc["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		gc["topP"] = *req.TopP
	}
	if req.MaxOutputTokens != nil {
		gc["maxOutputTokens"] = *req.MaxOutputTokens
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" && req.Reasoning.Effort != "none" {
		gc["thinkingConfig"] = map[string]any{"includeThoughts": true}
	}
	if len(gc) > 0 {
		out["generationConfig"] = gc
	}

	if len(req.Tools) > 0 {
		var decls []any
		for _, t := range req.Tools {
			decls = append(decls, map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Schema,
			})
		}
		out["tools"] = []any{map[string]any{"functionDeclarations": decls}}
	}

	if req.ToolChoice != nil {
		out["toolConfig"] = map[string]any{"functionCallingConfig": encodeToolChoice(*req.ToolChoice)}
	}

	shared.MergeExtra(out, req.ExtraBody)
	return out
}

func encodeToolChoice(tc urp.ToolChoice) map[string]any {
	if tc.ForcedToolName != "" {
		return map[string]any{"mode": "ANY", "allowedFunctionNames": []any{tc.ForcedToolName}}
	}
	switch tc.Mode {
	case urp.ToolChoiceNone:
		return map[string]any{"mode": "NONE"}
	case urp.ToolChoiceRequired:
		return map[string]any{"mode": "ANY"}
	default:
		return map[string]any{"mode": "AUTO"}
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

func encodeContents(messages []urp.Message) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, encodeContent(m))
	}
	return out
}

func encodeContent(m urp.Message) map[string]any {
	role := "user"
	if m.Role == urp.RoleAssistant {
		role = "model"
	}

	var parts []any
	for _, p := range m.Parts {
		switch part := p.(type) {
		case urp.TextPart:
			parts = append(parts, map[string]any{"text": part.Content})
		case urp.ImagePart:
			parts = append(parts, imagePart(part.Ref))
		case urp.FilePart:
			parts = append(parts, map[string]any{
				"fileData": map[string]any{"fileUri": part.Ref.URL, "mimeType": part.Ref.MimeType},
			})
		case urp.ReasoningPart:
			parts = append(parts, map[string]any{"text": part.Content, "thought": true})
		case urp.ReasoningEncryptedPart:
			sig, _ := part.Data.(string)
			parts = append(parts, map[string]any{"thought": true, "thoughtSignature": sig})
		case urp.ToolCallPart:
			var args any
			_ = json.Unmarshal([]byte(part.Arguments), &args)
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"id": part.CallID, "name": part.Name, "args": args},
			})
		case urp.ToolResultPart:
			role = "user"
			parts = append(parts, map[string]any{
				"functionResponse": map[string]any{"id": part.CallID},
			})
		}
	}

	return map[string]any{"role": role, "parts": parts}
}

func imagePart(ref urp.MediaRef) map[string]any {
	if ref.Base64 != "" {
		return map[string]any{"inlineData": map[string]any{"mimeType": ref.MimeType, "data": ref.Base64}}
	}
	return map[string]any{"fileData": map[string]any{"fileUri": ref.URL, "mimeType": ref.MimeType}}
}

// DecodeResponse parses a non-streaming Gemini generateContent response
// body into URP.
func DecodeResponse(body map[string]any, policy config.UnknownFieldPolicy) (urp.Response, error) {
	extra, err := shared.SplitExtra(body, responseKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Response{}, err
	}

	resp := urp.Response{Model: asString(body["modelVersion"]), Extra: urp.Extra(extra)}

	candidates := asSlice(body["candidates"])
	if len(candidates) == 0 {
		return urp.Response{}, errNoCandidates
	}
	cand := asMap(candidates[0])

	content := decodeContent(asMap(cand["content"]))
	content.Role = urp.RoleAssistant
	resp.Message = content
	resp.FinishReason = finishReasonToURP(asString(cand["finishReason"]))

	if u := asMap(body["usageMetadata"]); u != nil {
		resp.Usage = decodeUsage(u)
	}

	return resp, nil
}

func finishReasonToURP(fr string) urp.FinishReason {
	switch fr {
	case "STOP":
		return urp.FinishStop
	case "MAX_TOKENS":
		return urp.FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return urp.FinishContentFilter
	default:
		return urp.FinishOther
	}
}

func finishReasonFromURP(fr urp.FinishReason, hasToolCall bool) string {
	if hasToolCall {
		return "STOP"
	}
	switch fr {
	case urp.FinishLength:
		return "MAX_TOKENS"
	case urp.FinishContentFilter:
		return "SAFETY"
	default:
		return "STOP"
	}
}

func decodeUsage(u map[string]any) *urp.Usage {
	usage := &urp.Usage{}
	if v, ok := asFloat(u["promptTokenCount"]); ok {
		usage.PromptTokens = int64(v)
	}
	if v, ok := asFloat(u["candidatesTokenCount"]); ok {
		usage.CompletionTokens = int64(v)
	}
	if v, ok := asFloat(u["thoughtsTokenCount"]); ok {
		usage.ReasoningTokens = urp.Int64Ptr(int64(v))
	}
	if v, ok := asFloat(u["cachedContentTokenCount"]); ok {
		usage.CachedTokens = urp.Int64Ptr(int64(v))
	}
	return usage
}

// EncodeResponse renders resp as a Gemini generateContent response body.
func EncodeResponse(resp urp.Response) map[string]any {
	msg := resp.Message
	msg.Role = urp.RoleAssistant
	hasToolCall := false
	for _, p := range msg.Parts {
		if _, ok := p.(urp.ToolCallPart); ok {
			hasToolCall = true
		}
	}

	out := map[string]any{
		"modelVersion": resp.Model,
		"candidates": []any{map[string]any{
			"content":      encodeContent(msg),
			"finishReason": finishReasonFromURP(resp.FinishReason, hasToolCall),
			"index":        0,
		}},
	}
	if resp.Usage != nil {
		out["usageMetadata"] = encodeUsage(*resp.Usage)
	}
	shared.MergeExtra(out, resp.Extra)
	return out
}

func encodeUsage(u urp.Usage) map[string]any {
	out := map[string]any{
		"promptTokenCount":     u.PromptTokens,
		"candidatesTokenCount": u.CompletionTokens,
		"totalTokenCount":      u.PromptTokens + u.CompletionTokens,
	}
	if u.ReasoningTokens != nil {
		out["thoughtsTokenCount"] = *u.ReasoningTokens
	}
	if u.CachedTokens != nil {
		out["cachedContentTokenCount"] = *u.CachedTokens
	}
	shared.MergeExtra(out, u.Extra)
	return out
}
