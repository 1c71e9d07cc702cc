package chat

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/adapters/shared"
	"github.com/nexrelay/gatewaycore/pkg/config"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// DecodeRequest parses a Chat Completions request body into URP.
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
	if mt, ok := asFloat(body["max_completion_tokens"]); ok {
		v := int64(mt)
		req.MaxOutputTokens = &v
	} else if mt, ok := asFloat(body["max_tokens"]); ok {
		v := int64(mt)
		req.MaxOutputTokens = &v
	}
	if effort := asString(body["reasoning_effort"]); effort != "" {
		req.Reasoning = &urp.Reasoning{Effort: effort}
	}

	for _, m := range asSlice(body["messages"]) {
		msg, err := decodeMessage(asMap(m), policy)
		if err != nil {
			return urp.Request{}, err
		}
		req.Messages = append(req.Messages, msg)
	}

	if tools := asSlice(body["tools"]); len(tools) > 0 {
		for _, t := range tools {
			tm := asMap(t)
			fn := asMap(tm["function"])
			strict, _ := fn["strict"].(bool)
			req.Tools = append(req.Tools, urp.ToolDefinition{
				Name:        asString(fn["name"]),
				Description: asString(fn["description"]),
				Schema:      asMap(fn["parameters"]),
				Strict:      strict,
			})
		}
	}

	if tc, ok := body["tool_choice"]; ok {
		req.ToolChoice = decodeToolChoice(tc)
	}

	if rf := asMap(body["response_format"]); rf != nil {
		req.ResponseFormat = decodeResponseFormat(rf)
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
		fn := asMap(t["function"])
		return &urp.ToolChoice{ForcedToolName: asString(fn["name"])}
	default:
		return nil
	}
}

func decodeResponseFormat(rf map[string]any) *urp.ResponseFormat {
	switch asString(rf["type"]) {
	case "json_object":
		return &urp.ResponseFormat{Type: urp.ResponseFormatJSONObject}
	case "json_schema":
		js := asMap(rf["json_schema"])
		strict, _ := js["strict"].(bool)
		return &urp.ResponseFormat{
			Type:        urp.ResponseFormatJSONSchema,
			Name:        asString(js["name"]),
			Description: asString(js["description"]),
			Schema:      asMap(js["schema"]),
			Strict:      strict,
		}
	default:
		return &urp.ResponseFormat{Type: urp.ResponseFormatText}
	}
}

func decodeMessage(m map[string]any, policy config.UnknownFieldPolicy) (urp.Message, error) {
	extra, err := shared.SplitExtra(m, messageKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Message{}, err
	}

	msg := urp.Message{Role: roleToURP(asString(m["role"])), Extra: urp.Extra(extra)}

	// reasoning_details[] round-trip (spec §4.C).
	for _, rd := range asSlice(m["reasoning_details"]) {
		rdm := asMap(rd)
		switch asString(rdm["type"]) {
		case "reasoning.text", "reasoning.summary":
			msg.Parts = append(msg.Parts, urp.ReasoningPart{Content: asString(rdm["text"])})
		case "reasoning.encrypted":
			msg.Parts = append(msg.Parts, urp.ReasoningEncryptedPart{Data: rdm["data"]})
		}
	}
	if legacy := asString(m["reasoning"]); legacy != "" {
		msg.Parts = append(msg.Parts, urp.ReasoningPart{Content: legacy})
	}
	if rc := asString(m["reasoning_content"]); rc != "" {
		msg.Parts = append(msg.Parts, urp.ReasoningPart{Content: rc})
	}
	if ro := asString(m["reasoning_opaque"]); ro != "" {
		msg.Parts = append(msg.Parts, urp.ReasoningEncryptedPart{Data: ro})
	}

	msg.Parts = append(msg.Parts, decodeContent(m["content"])...)

	for _, tc := range asSlice(m["tool_calls"]) {
		tcm := asMap(tc)
		fn := asMap(tcm["function"])
		msg.Parts = append(msg.Parts, urp.ToolCallPart{
			CallID:    asString(tcm["id"]),
			Name:      asString(fn["name"]),
			Arguments: asString(fn["arguments"]),
		})
	}

	if callID := asString(m["tool_call_id"]); callID != "" {
		msg.Parts = append([]urp.Part{urp.ToolResultPart{CallID: callID}}, msg.Parts...)
	}

	return msg, nil
}

// decodeContent handles both the plain-string and multipart-array forms of
// a Chat message's "content" field.
func decodeContent(v any) []urp.Part {
	switch c := v.(type) {
	case string:
		if c == "" {
			return nil
		}
		return []urp.Part{urp.TextPart{Content: c}}
	case []any:
		var parts []urp.Part
		for _, item := range c {
			im := asMap(item)
			switch asString(im["type"]) {
			case "text":
				parts = append(parts, urp.TextPart{Content: asString(im["text"])})
			case "image_url":
				iu := asMap(im["image_url"])
				parts = append(parts, urp.ImagePart{Ref: urp.MediaRef{URL: asString(iu["url"])}})
			case "file":
				f := asMap(im["file"])
				parts = append(parts, urp.FilePart{Ref: urp.MediaRef{
					Base64:   asString(f["file_data"]),
					Filename: asString(f["filename"]),
				}})
			}
		}
		return parts
	default:
		return nil
	}
}

// DecodeResponse parses a non-streaming Chat Completions response body
// (as received from an upstream whose kind is Chat/Grok) into URP.
func DecodeResponse(body map[string]any, policy config.UnknownFieldPolicy) (urp.Response, error) {
	extra, err := shared.SplitExtra(body, responseKnownKeys, policyOrDefault(policy))
	if err != nil {
		return urp.Response{}, err
	}

	choices := asSlice(body["choices"])
	if len(choices) == 0 {
		return urp.Response{}, fmt.Errorf("chat: response has no choices")
	}
	choice := asMap(choices[0])

	msg, err := decodeMessage(asMap(choice["message"]), policy)
	if err != nil {
		return urp.Response{}, err
	}

	resp := urp.Response{
		ID:           asString(body["id"]),
		Model:        asString(body["model"]),
		Message:      msg,
		FinishReason: finishReasonToURP(asString(choice["finish_reason"])),
		Extra:        urp.Extra(extra),
	}

	if u := asMap(body["usage"]); u != nil {
		resp.Usage = decodeUsage(u)
	}

	return resp, nil
}

func decodeUsage(u map[string]any) *urp.Usage {
	usage := &urp.Usage{}
	if v, ok := asFloat(u["prompt_tokens"]); ok {
		usage.PromptTokens = int64(v)
	}
	if v, ok := asFloat(u["completion_tokens"]); ok {
		usage.CompletionTokens = int64(v)
	}
	if details := asMap(u["completion_tokens_details"]); details != nil {
		if v, ok := asFloat(details["reasoning_tokens"]); ok {
			usage.ReasoningTokens = urp.Int64Ptr(int64(v))
		}
	}
	if details := asMap(u["prompt_tokens_details"]); details != nil {
		if v, ok := asFloat(details["cached_tokens"]); ok {
			usage.CachedTokens = urp.Int64Ptr(int64(v))
		}
	}
	return usage
}

// marshalArguments serializes a decoded tool-call argument value into a
// JSON string. Nothing in this package calls it: decodeMessage keeps Chat
// tool-call arguments as the string they arrive as.
func marshalArguments(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
