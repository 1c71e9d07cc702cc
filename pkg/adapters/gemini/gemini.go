// Package gemini adapts the Google Gemini generateContent wire shape to
// and from URP. Gemini has no system/developer role inside "contents": a
// top-level "systemInstruction" plays the same role Anthropic's "system"
// field plays, and is merged into a synthetic first system message (spec
// §4.C), the same way the messages package handles Anthropic.
package gemini

import (
	"encoding/json"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func marshalArgs(v any) (string, error) {
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
	"contents":          {},
	"systemInstruction": {},
	"generationConfig":  {},
	"tools":             {},
	"toolConfig":        {},
}

var responseKnownKeys = map[string]struct{}{
	"candidates":    {},
	"usageMetadata": {},
	"modelVersion":  {},
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

// DecodeRequest parses a Gemini generateContent request body into URP.
// model is supplied separately since Gemini carries it in the URL path
// (":generateContent") rather than the body.
func DecodeRequest(model string, body map[string]any, policy config.UnknownFieldPolicy) (urp.Request, error) {
	extraBody, err := shared.SplitExtra(body, requestKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Request{}, err
	}

	req := urp.Request{Model: model, ExtraBody: urp.Extra(extraBody)}

	if gc := asMap(body["generationConfig"]); gc != nil {
		if t, ok := asFloat(gc["temperature"]); ok {
			req.Temperature = &t
		}
		if tp, ok := asFloat(gc["topP"]); ok {
			req.TopP = &tp
		}
		if mt, ok := asFloat(gc["maxOutputTokens"]); ok {
			v := int64(mt)
			req.MaxOutputTokens = &v
		}
		if tc := asMap(gc["thinkingConfig"]); tc != nil && asBool(tc["includeThoughts"]) {
			req.Reasoning = &urp.Reasoning{Effort: "high"}
		}
	}

	if si := asMap(body["systemInstruction"]); si != nil {
		if text := partsText(asSlice(si["parts"])); text != "" {
			req.Messages = append(req.Messages, urp.Message{
				Role:  urp.RoleSystem,
				Parts: []urp.Part{urp.TextPart{Content: text}},
			})
		}
	}

	for _, c := range asSlice(body["contents"]) {
		req.Messages = append(req.Messages, decodeContent(asMap(c)))
	}

	for _, t := range asSlice(body["tools"]) {
		tm := asMap(t)
		for _, fd := range asSlice(tm["functionDeclarations"]) {
			fdm := asMap(fd)
			req.Tools = append(req.Tools, urp.ToolDefinition{
				Name:        asString(fdm["name"]),
				Description: asString(fdm["description"]),
				Schema:      asMap(fdm["parameters"]),
			})
		}
	}

	if toolConfig := asMap(body["toolConfig"]); toolConfig != nil {
		req.ToolChoice = decodeToolChoice(asMap(toolConfig["functionCallingConfig"]))
	}

	return req, nil
}

func decodeToolChoice(fcc map[string]any) *urp.ToolChoice {
	if fcc == nil {
		return nil
	}
	switch asString(fcc["mode"]) {
	case "AUTO":
		return &urp.ToolChoice{Mode: urp.ToolChoiceAuto}
	case "NONE":
		return &urp.ToolChoice{Mode: urp.ToolChoiceNone}
	case "ANY":
		names := asSlice(fcc["allowedFunctionNames"])
		if len(names) == 1 {
			return &urp.ToolChoice{ForcedToolName: asString(names[0])}
		}
		return &urp.ToolChoice{Mode: urp.ToolChoiceRequired}
	default:
		return nil
	}
}

func partsText(parts []any) string {
	var out string
	for _, p := range parts {
		pm := asMap(p)
		if asBool(pm["thought"]) {
			continue
		}
		out += asString(pm["text"])
	}
	return out
}

func decodeContent(c map[string]any) urp.Message {
	role := urp.RoleUser
	if asString(c["role"]) == "model" {
		role = urp.RoleAssistant
	}
	msg := urp.Message{Role: role}

	for _, p := range asSlice(c["parts"]) {
		pm := asMap(p)
		switch {
		case pm["functionCall"] != nil:
			fc := asMap(pm["functionCall"])
			args, _ := marshalArgs(fc["args"])
			msg.Parts = append(msg.Parts, urp.ToolCallPart{
				CallID:    asString(fc["id"]),
				Name:      asString(fc["name"]),
				Arguments: args,
			})
		case pm["functionResponse"] != nil:
			fr := asMap(pm["functionResponse"])
			msg.Role = urp.RoleTool
			msg.Parts = append(msg.Parts, urp.ToolResultPart{CallID: asString(fr["id"])})
		case pm["inlineData"] != nil:
			id := asMap(pm["inlineData"])
			msg.Parts = append(msg.Parts, urp.ImagePart{Ref: urp.MediaRef{
				Base64:   asString(id["data"]),
				MimeType: asString(id["mimeType"]),
			}})
		case pm["fileData"] != nil:
			fd := asMap(pm["fileData"])
			msg.Parts = append(msg.Parts, urp.FilePart{Ref: urp.MediaRef{
				URL:      asString(fd["fileUri"]),
				MimeType: asString(fd["mimeType"]),
			}})
		case asBool(pm["thought"]):
			if sig := asString(pm["thoughtSignature"]); sig != "" {
				msg.Parts = append(msg.Parts, urp.ReasoningEncryptedPart{Data: sig})
			} else {
				msg.Parts = append(msg.Parts, urp.ReasoningPart{Content: asString(pm["text"])})
			}
		default:
			if text := asString(pm["text"]); text != "" {
				msg.Parts = append(msg.Parts, urp.TextPart{Content: text})
			}
		}
	}
	return msg
}
