// Package chat adapts the OpenAI Chat Completions wire shape to and from
// the neutral URP form. It serves both sides of the gateway: decoding a
// client's chat-shaped request (downstream ingress) and encoding a
// chat-shaped request to send upstream use the same Request functions;
// decoding a chat-shaped upstream response and encoding the client's final
// chat-shaped response use the same Response functions. Grok upstreams
// reuse this package wholesale (spec §4.C: "xAI's Grok API is
// Chat-Completions-wire-compatible").
package chat

import (
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

var requestKnownKeys = map[string]struct{}{
	"model":               {},
	"messages":            {},
	"stream":              {},
	"temperature":         {},
	"top_p":               {},
	"max_tokens":          {},
	"max_completion_tokens": {},
	"tools":               {},
	"tool_choice":         {},
	"response_format":     {},
	"user":                {},
	"reasoning_effort":    {},
}

var responseKnownKeys = map[string]struct{}{
	"id":                 {},
	"object":              {},
	"created":             {},
	"model":               {},
	"choices":             {},
	"usage":               {},
	"system_fingerprint":  {},
}

var messageKnownKeys = map[string]struct{}{
	"role":              {},
	"content":           {},
	"tool_calls":        {},
	"tool_call_id":      {},
	"name":              {},
	"reasoning_details": {},
	"reasoning":         {},
	"reasoning_content": {},
	"reasoning_opaque":  {},
}

func roleToURP(role string) urp.Role {
	switch role {
	case "system":
		return urp.RoleSystem
	case "developer":
		return urp.RoleDeveloper
	case "assistant":
		return urp.RoleAssistant
	case "tool":
		return urp.RoleTool
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
	case urp.RoleTool:
		return "tool"
	default:
		return "user"
	}
}

func finishReasonToURP(fr string) urp.FinishReason {
	switch fr {
	case "stop":
		return urp.FinishStop
	case "length":
		return urp.FinishLength
	case "tool_calls":
		return urp.FinishToolCalls
	case "content_filter":
		return urp.FinishContentFilter
	default:
		return urp.FinishOther
	}
}

func finishReasonFromURP(fr urp.FinishReason) string {
	switch fr {
	case urp.FinishStop:
		return "stop"
	case urp.FinishLength:
		return "length"
	case urp.FinishToolCalls:
		return "tool_calls"
	case urp.FinishContentFilter:
		return "content_filter"
	default:
		return "stop"
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func policyOrDefault(policy config.UnknownFieldPolicy) config.UnknownFieldPolicy {
	if policy == "" {
		return config.PolicyPreserve
	}
	return policy
}
