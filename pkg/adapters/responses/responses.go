// Package responses adapts the OpenAI Responses wire shape to and from URP.
package responses

import (
	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

var requestKnownKeys = map[string]struct{}{
	"model":             {},
	"input":             {},
	"instructions":      {},
	"stream":            {},
	"temperature":       {},
	"top_p":             {},
	"max_output_tokens": {},
	"reasoning":         {},
	"tools":             {},
	"tool_choice":       {},
	"text":              {},
	"user":              {},
}

var responseKnownKeys = map[string]struct{}{
	"id":     {},
	"object": {},
	"model":  {},
	"status": {},
	"output": {},
	"usage":  {},
}

func asString(v any) string { s, _ := v.(string); return s }
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
func asSlice(v any) []any { s, _ := v.([]any); return s }
func asBool(v any) bool   { b, _ := v.(bool); return b }
func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func policyOrDefault(policy config.UnknownFieldPolicy) config.UnknownFieldPolicy {
	if policy == "" {
		return config.PolicyPreserve
	}
	return policy
}

// DecodeRequest parses a Responses API request body into URP.
func DecodeRequest(body map[string]any, policy config.UnknownFieldPolicy) (urp.Request, error) {
	extraBody, err := shared.SplitExtra(body, requestKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Request{}, err
	}

	req := urp.Request{
		Model:     asString(body["model"]),
		Stream:    asBool(body["stream"]),
		User:      asString(body["user"]),
		ExtraBody: urp.Extra(extraBody),
	}

	if t, ok := asFloat(body["temperature"]); ok {
		req.Temperature = &t
	}
	if tp, ok := asFloat(body["top_p"]); ok {
		req.TopP = &tp
	}
	if mt, ok := asFloat(body["max_output_tokens"]); ok {
		v := int64(mt)
		req.MaxOutputTokens = &v
	}
	if r := asMap(body["reasoning"]); r != nil {
		req.Reasoning = &urp.Reasoning{Effort: asString(r["effort"])}
	}

	if instructions := asString(body["instructions"]); instructions != "" {
		req.Messages = append(req.Messages, urp.Message{
			Role:  urp.RoleSystem,
			Parts: []urp.Part{urp.TextPart{Content: instructions}},
		})
	}

	switch input := body["input"].(type) {
	case string:
		req.Messages = append(req.Messages, urp.Message{
			Role:  urp.RoleUser,
			Parts: []urp.Part{urp.TextPart{Content: input}},
		})
	case []any:
		for _, item := range input {
			msg, ok := decodeInputItem(asMap(item))
			if ok {
				req.Messages = append(req.Messages, msg)
			}
		}
	}

	for _, t := range asSlice(body["tools"]) {
		tm := asMap(t)
		strict, _ := tm["strict"].(bool)
		req.Tools = append(req.Tools, urp.ToolDefinition{
			Name:        asString(tm["name"]),
			Description: asString(tm["description"]),
			Schema:      asMap(tm["parameters"]),
			Strict:      strict,
		})
	}

	if tc, ok := body["tool_choice"]; ok {
		req.ToolChoice = decodeToolChoice(tc)
	}

	if text := asMap(body["text"]); text != nil {
		if format := asMap(text["format"]); format != nil {
			req.ResponseFormat = decodeResponseFormat(format)
		}
	}

	return req, nil
}

func decodeToolChoice(v any) *urp.ToolChoice {
	switch t := v.(type) {
	case string:
		switch t {
		case "auto":
			return &urp.ToolChoice{Mode: urp.ToolChoiceAuto}
		case "none":
			return &urp.ToolChoice{Mode: urp.ToolChoiceNone}
		case "required":
			return &urp.ToolChoice{Mode: urp.ToolChoiceRequired}
		}
		return nil
	case map[string]any:
		return &urp.ToolChoice{ForcedToolName: asString(t["name"])}
	default:
		return nil
	}
}

func decodeResponseFormat(format map[string]any) *urp.ResponseFormat {
	switch asString(format["type"]) {
	case "json_object":
		return &urp.ResponseFormat{Type: urp.ResponseFormatJSONObject}
	case "json_schema":
		strict, _ := format["strict"].(bool)
		return &urp.ResponseFormat{
			Type:        urp.ResponseFormatJSONSchema,
			Name:        asString(format["name"]),
			Schema:      asMap(format["schema"]),
			Strict:      strict,
		}
	default:
		return &urp.ResponseFormat{Type: urp.ResponseFormatText}
	}
}

// decodeInputItem handles the three item shapes the Responses "input" array
// carries: a role+content message, an assistant function_call issued
// earlier in the conversation, and a function_call_output supplying a tool
// result.
func decodeInputItem(item map[string]any) (urp.Message, bool) {
	switch asString(item["type"]) {
	case "", "message":
		return decodeMessageItem(item), true
	case "function_call":
		return urp.Message{
			Role: urp.RoleAssistant,
			Parts: []urp.Part{urp.ToolCallPart{
				CallID:    asString(item["call_id"]),
				Name:      asString(item["name"]),
				Arguments: asString(item["arguments"]),
			}},
		}, true
	case "function_call_output":
		return urp.Message{
			Role: urp.RoleTool,
			Parts: []urp.Part{
				urp.ToolResultPart{CallID: asString(item["call_id"])},
				urp.TextPart{Content: asString(item["output"])},
			},
		}, true
	default:
		return urp.Message{}, false
	}
}

func decodeMessageItem(item map[string]any) urp.Message {
	msg := urp.Message{Role: roleToURP(asString(item["role"]))}
	for _, c := range asSlice(item["content"]) {
		cm := asMap(c)
		switch asString(cm["type"]) {
		case "input_text", "output_text":
			msg.Parts = append(msg.Parts, urp.TextPart{Content: asString(cm["text"])})
		case "input_image":
			msg.Parts = append(msg.Parts, urp.ImagePart{Ref: urp.MediaRef{URL: asString(cm["image_url"])}})
		case "input_file":
			msg.Parts = append(msg.Parts, urp.FilePart{Ref: urp.MediaRef{
				Base64:   asString(cm["file_data"]),
				Filename: asString(cm["filename"]),
			}})
		case "refusal":
			msg.Parts = append(msg.Parts, urp.RefusalPart{Content: asString(cm["refusal"])})
		}
	}
	return msg
}

func roleToURP(role string) urp.Role {
	switch role {
	case "system":
		return urp.RoleSystem
	case "developer":
		return urp.RoleDeveloper
	case "assistant":
		return urp.RoleAssistant
	default:
		return urp.RoleUser
	}
}

func roleFromURP(r urp.Role) string {
	switch r {
	case urp.RoleSystem:
		return "system"
	case urp.RoleDeveloper:
		return "developer"
	case urp.RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}
