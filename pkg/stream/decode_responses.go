package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// ResponsesDecoder decodes Responses-shape SSE events (spec §6: each frame's
// data payload is {"sequence_number": N, "data": <inner>}) into neutral
// events.
type ResponsesDecoder struct {
	sawToolCall bool
	lastUsage   *urp.Usage
	// callNames tracks output_index -> {call_id, name} captured on
	// response.output_item.added, so the first arguments delta for a call
	// can carry its identity along.
	callNames map[string]struct{ callID, name string }
}

// NewResponsesDecoder builds an empty decoder.
func NewResponsesDecoder() *ResponsesDecoder {
	return &ResponsesDecoder{callNames: make(map[string]struct{ callID, name string })}
}

func (d *ResponsesDecoder) Decode(raw *RawEvent) ([]Event, error) {
	var frame struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw.Data), &frame); err != nil {
		return nil, fmt.Errorf("stream: decode responses frame: %w", err)
	}

	switch raw.Event {
	case "response.output_text.delta":
		var inner struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		return []Event{{Kind: KindTextDelta, TextDelta: inner.Delta}}, nil

	case "response.reasoning_text.delta":
		var inner struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		return []Event{{Kind: KindReasoningDelta, ReasoningDelta: inner.Delta}}, nil

	case "response.reasoning_signature.delta":
		var inner struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		return []Event{{Kind: KindReasoningSignatureDelta, ReasoningSignatureDelta: inner.Delta}}, nil

	case "response.output_item.added":
		var inner struct {
			OutputIndex int `json:"output_index"`
			Item        struct {
				Type   string `json:"type"`
				CallID string `json:"call_id"`
				Name   string `json:"name"`
			} `json:"item"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		if inner.Item.Type == "function_call" {
			key := fmt.Sprintf("%d", inner.OutputIndex)
			d.callNames[key] = struct{ callID, name string }{inner.Item.CallID, inner.Item.Name}
			d.sawToolCall = true
		}
		return nil, nil

	case "response.function_call_arguments.delta":
		var inner struct {
			OutputIndex int    `json:"output_index"`
			Delta       string `json:"delta"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%d", inner.OutputIndex)
		id := d.callNames[key]
		return []Event{{Kind: KindToolCallDelta, ToolCall: &ToolCallDelta{
			CorrelationKey: key,
			CallID:         id.callID,
			Name:           id.name,
			ArgumentsDelta: inner.Delta,
		}}}, nil

	case "response.function_call_arguments.done":
		var inner struct {
			OutputIndex int `json:"output_index"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%d", inner.OutputIndex)
		id := d.callNames[key]
		return []Event{{Kind: KindToolCallDone, ToolCall: &ToolCallDelta{CorrelationKey: key, CallID: id.callID, Name: id.name}}}, nil

	case "response.completed":
		var inner struct {
			Response struct {
				Usage *struct {
					InputTokens       int64  `json:"input_tokens"`
					OutputTokens      int64  `json:"output_tokens"`
					ReasoningTokens   *int64 `json:"reasoning_tokens"`
					CachedInputTokens *int64 `json:"cached_input_tokens"`
				} `json:"usage"`
			} `json:"response"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		var out []Event
		if inner.Response.Usage != nil {
			u := &urp.Usage{
				PromptTokens:     inner.Response.Usage.InputTokens,
				CompletionTokens: inner.Response.Usage.OutputTokens,
				ReasoningTokens:  inner.Response.Usage.ReasoningTokens,
				CachedTokens:     inner.Response.Usage.CachedInputTokens,
			}
			if d.lastUsage == nil || u.GreaterOrEqual(*d.lastUsage) {
				d.lastUsage = u
				out = append(out, Event{Kind: KindUsage, Usage: u})
			}
		}
		fr := urp.FinishStop
		if d.sawToolCall {
			fr = urp.FinishToolCalls
		}
		out = append(out, Event{Kind: KindFinish, FinishReason: fr})
		return out, nil

	case "error":
		var inner struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(frame.Data, &inner); err != nil {
			return nil, err
		}
		return []Event{{Kind: KindError, Err: gatewayerrors.New(gatewayerrors.KindUpstreamError, inner.Message)}}, nil

	default:
		return nil, nil
	}
}
