package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// ChatDecoder decodes Chat-Completions-shape SSE chunks into neutral
// events. Grok reuses this decoder wholesale (spec: Grok is
// Chat-Completions-wire-compatible).
type ChatDecoder struct {
	lastUsage *urp.Usage
}

// NewChatDecoder builds an empty decoder.
func NewChatDecoder() *ChatDecoder {
	return &ChatDecoder{}
}

func (d *ChatDecoder) Decode(raw *RawEvent) ([]Event, error) {
	if IsDone(raw) {
		return []Event{{Kind: KindDone}}, nil
	}

	var chunk struct {
		Choices []struct {
			Index int `json:"index"`
			Delta struct {
				Content         string `json:"content"`
				ReasoningContent string `json:"reasoning_content"`
				Reasoning       string `json:"reasoning"`
				ToolCalls       []struct {
					Index    int    `json:"index"`
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(raw.Data), &chunk); err != nil {
		return nil, fmt.Errorf("stream: decode chat chunk: %w", err)
	}

	var out []Event

	if chunk.Usage != nil {
		u := &urp.Usage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens}
		if d.lastUsage == nil || u.GreaterOrEqual(*d.lastUsage) {
			d.lastUsage = u
			out = append(out, Event{Kind: KindUsage, Usage: u})
		}
	}

	for _, choice := range chunk.Choices {
		delta := choice.Delta
		if delta.Content != "" {
			out = append(out, Event{Kind: KindTextDelta, TextDelta: delta.Content})
		}
		reasoning := delta.ReasoningContent
		if reasoning == "" {
			reasoning = delta.Reasoning
		}
		if reasoning != "" {
			out = append(out, Event{Kind: KindReasoningDelta, ReasoningDelta: reasoning})
		}
		for _, tc := range delta.ToolCalls {
			out = append(out, Event{Kind: KindToolCallDelta, ToolCall: &ToolCallDelta{
				CorrelationKey: fmt.Sprintf("%d", tc.Index),
				CallID:         tc.ID,
				Name:           tc.Function.Name,
				ArgumentsDelta: tc.Function.Arguments,
			}})
		}
		if choice.FinishReason != nil {
			out = append(out, Event{Kind: KindFinish, FinishReason: finishReasonFromWire(*choice.FinishReason)})
		}
	}

	return out, nil
}

func finishReasonFromWire(s string) urp.FinishReason {
	switch s {
	case "stop":
		return urp.FinishStop
	case "length":
		return urp.FinishLength
	case "tool_calls":
		return urp.FinishToolCalls
	case "content_filter":
		return urp.FinishContentFilter
	default:
		return urp.FinishStop
	}
}
