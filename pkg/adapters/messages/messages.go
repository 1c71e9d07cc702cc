// Package messages adapts the Anthropic Messages wire shape to and from
// URP.
package messages

import (
	"encoding/json"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func marshalInput(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var requestKnownKeys = map[string]struct{}{
	"model":          {},
	"messages":       {},
	"system":         {},
	"stream":         {},
	"temperature":    {},
	"top_p":          {},
	"max_tokens":     {},
	"thinking":       {},
	"tools":          {},
	"tool_choice":    {},
	"metadata":       {},
}

var responseKnownKeys = map[string]struct{}{
	"id":            {},
	"type":          {},
	"role":          {},
	"model":         {},
	"content":       {},
	"stop_reason":   {},
	"stop_sequence": {},
	"usage":         {},
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

// DecodeRequest parses a Messages API request body into URP. Anthropic has
// no developer/system message *inside* the messages array: system text
// arrives in a top-level "system" field and is merged into a synthetic
// first system message (spec §4.C).
func DecodeRequest(body map[string]any, policy config.UnknownFieldPolicy) (urp.Request, error) {
	extraBody, err := shared.SplitExtra(body, requestKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Request{}, err
	}

	req := urp.Request{
		Model:     asString(body["model"]),
		Stream:    asBool(body["stream"]),
		ExtraBody: urp.Extra(extraBody),
	}

	if t, ok := asFloat(body["temperature"]); ok {
		req.Temperature = &t
	}
	if tp, ok := asFloat(body["top_p"]); ok {
		req.TopP = &tp
	}
	if mt, ok := asFloat(body["max_tokens"]); ok {
		v := int64(mt)
		req.MaxOutputTokens = &v
	}
	if thinking := asMap(body["thinking"]); thinking != nil && asString(thinking["type"]) == "enabled" {
		req.Reasoning = &urp.Reasoning{Effort: "high"}
	}

	if system := decodeSystem(body["system"]); system != "" {
		req.Messages = append(req.Messages, urp.Message{
			Role:  urp.RoleSystem,
			Parts: []urp.Part{urp.TextPart{Content: system}},
		})
	}

	for _, m := range asSlice(body["messages"]) {
		msg := decodeMessage(asMap(m))
		req.Messages = append(req.Messages, msg)
	}

	for _, t := range asSlice(body["tools"]) {
		tm := asMap(t)
		req.Tools = append(req.Tools, urp.ToolDefinition{
			Name:        asString(tm["name"]),
			Description: asString(tm["description"]),
			Schema:      asMap(tm["input_schema"]),
		})
	}

	if tc, ok := body["tool_choice"]; ok {
		req.ToolChoice = decodeToolChoice(tc)
	}

	return req, nil
}

// decodeSystem handles both the plain-string and block-array forms of the
// top-level "system" field.
func decodeSystem(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		var out string
		for _, b := range s {
			bm := asMap(b)
			out += asString(bm["text"])
		}
		return out
	default:
		return ""
	}
}

func decodeToolChoice(v any) *urp.ToolChoice {
	tm := asMap(v)
	if tm == nil {
		return nil
	}
	switch asString(tm["type"]) {
	case "auto":
		return &urp.ToolChoice{Mode: urp.ToolChoiceAuto}
	case "none":
		return &urp.ToolChoice{Mode: urp.ToolChoiceNone}
	case "any":
		return &urp.ToolChoice{Mode: urp.ToolChoiceRequired}
	case "tool":
		return &urp.ToolChoice{ForcedToolName: asString(tm["name"])}
	default:
		return nil
	}
}

func decodeMessage(m map[string]any) urp.Message {
	role := urp.RoleUser
	if asString(m["role"]) == "assistant" {
		role = urp.RoleAssistant
	}
	msg := urp.Message{Role: role}

	switch content := m["content"].(type) {
	case string:
		if content != "" {
			msg.Parts = append(msg.Parts, urp.TextPart{Content: content})
		}
	case []any:
		for _, b := range content {
			part, isToolResult := decodeBlock(asMap(b))
			msg.Parts = append(msg.Parts, part)
			if isToolResult {
				msg.Role = urp.RoleTool
			}
		}
	}
	return msg
}

func decodeBlock(b map[string]any) (urp.Part, bool) {
	switch asString(b["type"]) {
	case "text":
		return urp.TextPart{Content: asString(b["text"])}, false
	case "image":
		src := asMap(b["source"])
		return urp.ImagePart{Ref: urp.MediaRef{
			URL:      asString(src["url"]),
			Base64:   asString(src["data"]),
			MimeType: asString(src["media_type"]),
		}}, false
	case "thinking":
		return urp.ReasoningPart{Content: asString(b["thinking"])}, false
	case "redacted_thinking":
		return urp.ReasoningEncryptedPart{Data: b["data"]}, false
	case "tool_use":
		args, _ := marshalInput(b["input"])
		return urp.ToolCallPart{
			CallID:    asString(b["id"]),
			Name:      asString(b["name"]),
			Arguments: args,
		}, false
	case "tool_result":
		isErr, _ := b["is_error"].(bool)
		return urp.ToolResultPart{CallID: asString(b["tool_use_id"]), IsError: isErr}, true
	default:
		return urp.TextPart{}, false
	}
}
