package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// ChatEncoder emits Chat-Completions-shape chat.completion.chunk frames
// and a terminal "[DONE]" sentinel (spec §6).
type ChatEncoder struct {
	ID    string
	Model string

	toolCallIndex map[string]int
	nextIndex     int
}

// NewChatEncoder builds an encoder stamping id/model on every chunk.
func NewChatEncoder(id, model string) *ChatEncoder {
	return &ChatEncoder{ID: id, Model: model, toolCallIndex: make(map[string]int)}
}

type chatChunkDelta struct {
	Content          string          `json:"content,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        []chatToolCall  `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

func (e *ChatEncoder) chunk(delta chatChunkDelta, finishReason *string) RawEvent {
	body := map[string]any{
		"id":     e.ID,
		"object": "chat.completion.chunk",
		"model":  e.Model,
		"choices": []map[string]any{
			{"index": 0, "delta": delta, "finish_reason": finishReason},
		},
	}
	data, _ := json.Marshal(body)
	return RawEvent{Data: string(data)}
}

func (e *ChatEncoder) Encode(ev Event) ([]RawEvent, error) {
	switch ev.Kind {
	case KindTextDelta:
		return []RawEvent{e.chunk(chatChunkDelta{Content: ev.TextDelta}, nil)}, nil

	case KindReasoningDelta:
		return []RawEvent{e.chunk(chatChunkDelta{ReasoningContent: ev.ReasoningDelta}, nil)}, nil

	case KindReasoningSignatureDelta:
		return nil, nil

	case KindToolCallDelta:
		idx, seen := e.toolCallIndex[ev.ToolCall.CorrelationKey]
		if !seen {
			idx = e.nextIndex
			e.nextIndex++
			e.toolCallIndex[ev.ToolCall.CorrelationKey] = idx
		}
		tc := chatToolCall{Index: idx, Function: chatToolFunction{Name: ev.ToolCall.Name, Arguments: ev.ToolCall.ArgumentsDelta}}
		if !seen && ev.ToolCall.CallID != "" {
			tc.ID = ev.ToolCall.CallID
			tc.Type = "function"
		}
		return []RawEvent{e.chunk(chatChunkDelta{ToolCalls: []chatToolCall{tc}}, nil)}, nil

	case KindToolCallDone:
		return nil, nil

	case KindUsage:
		u := ev.Usage
		body := map[string]any{
			"id":      e.ID,
			"object":  "chat.completion.chunk",
			"model":   e.Model,
			"choices": []map[string]any{},
			"usage": map[string]any{
				"prompt_tokens":     u.PromptTokens,
				"completion_tokens": u.CompletionTokens,
				"total_tokens":      u.PromptTokens + u.CompletionTokens,
			},
		}
		data, _ := json.Marshal(body)
		return []RawEvent{{Data: string(data)}}, nil

	case KindFinish:
		reason := finishReasonToWire(ev.FinishReason)
		return []RawEvent{e.chunk(chatChunkDelta{}, &reason)}, nil

	case KindError:
		body := map[string]any{"error": map[string]any{"message": ev.Err.Error(), "type": string(ev.Err.Kind), "code": ev.Err.Code()}}
		data, _ := json.Marshal(body)
		return []RawEvent{{Data: string(data)}}, nil

	default:
		return nil, fmt.Errorf("stream: chat encoder: unhandled event kind %d", ev.Kind)
	}
}

func (e *ChatEncoder) Close() []RawEvent {
	return []RawEvent{{Data: "[DONE]"}}
}

func finishReasonToWire(fr urp.FinishReason) string {
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
