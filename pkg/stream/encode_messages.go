package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// MessagesEncoder emits Anthropic Messages-shape events (spec §4.D / §6):
// message_start, one or more content_block_start/delta*/stop triples
// (indices 0..n-1, each started index eventually stopped), one
// message_delta with a terminal stop_reason, then message_stop.
type MessagesEncoder struct {
	ID    string
	Model string

	started bool

	nextBlockIndex int
	textIndex      int
	textStarted    bool
	reasoningIndex int
	reasoningStarted bool
	toolBlockIndex map[string]int

	usage *urp.Usage
}

// NewMessagesEncoder builds an encoder stamping id/model on message_start.
func NewMessagesEncoder(id, model string) *MessagesEncoder {
	return &MessagesEncoder{ID: id, Model: model, toolBlockIndex: make(map[string]int)}
}

func frame(eventName string, inner any) RawEvent {
	data, _ := json.Marshal(inner)
	return RawEvent{Event: eventName, Data: string(data)}
}

func (e *MessagesEncoder) ensureStarted(usage *urp.Usage) []RawEvent {
	if e.started {
		return nil
	}
	e.started = true
	message := map[string]any{"id": e.ID, "model": e.Model, "type": "message", "role": "assistant"}
	if usage != nil {
		message["usage"] = map[string]any{
			"input_tokens":              usage.PromptTokens,
			"output_tokens":             usage.CompletionTokens,
			"cache_read_input_tokens":   usage.CachedTokens,
		}
	}
	return []RawEvent{frame("message_start", map[string]any{"message": message})}
}

func (e *MessagesEncoder) Encode(ev Event) ([]RawEvent, error) {
	var out []RawEvent
	if ev.Kind == KindUsage {
		out = append(out, e.ensureStarted(ev.Usage)...)
		e.usage = ev.Usage
		return out, nil
	}
	out = append(out, e.ensureStarted(nil)...)

	switch ev.Kind {
	case KindTextDelta:
		if !e.textStarted {
			e.textStarted = true
			e.textIndex = e.nextBlockIndex
			e.nextBlockIndex++
			out = append(out, frame("content_block_start", map[string]any{
				"index":         e.textIndex,
				"content_block": map[string]any{"type": "text", "text": ""},
			}))
		}
		out = append(out, frame("content_block_delta", map[string]any{
			"index": e.textIndex,
			"delta": map[string]any{"type": "text_delta", "text": ev.TextDelta},
		}))
		return out, nil

	case KindReasoningDelta:
		if !e.reasoningStarted {
			e.reasoningStarted = true
			e.reasoningIndex = e.nextBlockIndex
			e.nextBlockIndex++
			out = append(out, frame("content_block_start", map[string]any{
				"index":         e.reasoningIndex,
				"content_block": map[string]any{"type": "thinking", "thinking": ""},
			}))
		}
		out = append(out, frame("content_block_delta", map[string]any{
			"index": e.reasoningIndex,
			"delta": map[string]any{"type": "thinking_delta", "thinking": ev.ReasoningDelta},
		}))
		return out, nil

	case KindReasoningSignatureDelta:
		out = append(out, frame("content_block_delta", map[string]any{
			"index": e.reasoningIndex,
			"delta": map[string]any{"type": "signature_delta", "signature": ev.ReasoningSignatureDelta},
		}))
		return out, nil

	case KindToolCallDelta:
		idx, seen := e.toolBlockIndex[ev.ToolCall.CorrelationKey]
		if !seen {
			idx = e.nextBlockIndex
			e.nextBlockIndex++
			e.toolBlockIndex[ev.ToolCall.CorrelationKey] = idx
			out = append(out, frame("content_block_start", map[string]any{
				"index":         idx,
				"content_block": map[string]any{"type": "tool_use", "id": ev.ToolCall.CallID, "name": ev.ToolCall.Name, "input": map[string]any{}},
			}))
		}
		out = append(out, frame("content_block_delta", map[string]any{
			"index": idx,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": ev.ToolCall.ArgumentsDelta},
		}))
		return out, nil

	case KindToolCallDone:
		idx := e.toolBlockIndex[ev.ToolCall.CorrelationKey]
		out = append(out, frame("content_block_stop", map[string]any{"index": idx}))
		return out, nil

	case KindFinish:
		if e.textStarted {
			out = append(out, frame("content_block_stop", map[string]any{"index": e.textIndex}))
		}
		if e.reasoningStarted {
			out = append(out, frame("content_block_stop", map[string]any{"index": e.reasoningIndex}))
		}
		delta := map[string]any{"stop_reason": finishReasonToAnthropic(ev.FinishReason)}
		body := map[string]any{"delta": delta}
		if e.usage != nil {
			body["usage"] = map[string]any{"output_tokens": e.usage.CompletionTokens}
		}
		out = append(out, frame("message_delta", body))
		out = append(out, frame("message_stop", map[string]any{}))
		return out, nil

	case KindError:
		out = append(out, frame("error", map[string]any{"error": map[string]any{"message": ev.Err.Error()}}))
		return out, nil

	default:
		return nil, fmt.Errorf("stream: messages encoder: unhandled event kind %d", ev.Kind)
	}
}

func (e *MessagesEncoder) Close() []RawEvent {
	return nil
}

func finishReasonToAnthropic(fr urp.FinishReason) string {
	switch fr {
	case urp.FinishToolCalls:
		return "tool_use"
	case urp.FinishLength:
		return "max_tokens"
	default:
		return "end_turn"
	}
}
