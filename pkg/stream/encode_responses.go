package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// ResponsesEncoder emits the Responses-shape event sequence (spec §6):
// response.created/in_progress, output_item.added/done, output_text.delta/
// done, reasoning_text.delta, reasoning_signature.delta,
// function_call_arguments.delta/done, response.completed. Every frame is
// stamped with a strictly increasing sequence_number.
type ResponsesEncoder struct {
	ID    string
	Model string

	seq     int
	started bool

	textStarted bool
	textIndex   int
	textBuf     strings.Builder

	reasoningStarted bool
	reasoningIndex   int

	nextOutputIndex int
	toolOutputIndex map[string]int
	toolIdentity    map[string]struct{ callID, name string }

	usage *urp.Usage
}

// NewResponsesEncoder builds an encoder stamping id/model on response.*
// frames.
func NewResponsesEncoder(id, model string) *ResponsesEncoder {
	return &ResponsesEncoder{
		ID:              id,
		Model:           model,
		toolOutputIndex: make(map[string]int),
		toolIdentity:    make(map[string]struct{ callID, name string }),
	}
}

func (e *ResponsesEncoder) frame(eventName string, inner any) RawEvent {
	payload := map[string]any{"sequence_number": e.seq, "data": inner}
	e.seq++
	data, _ := json.Marshal(payload)
	return RawEvent{Event: eventName, Data: string(data)}
}

func (e *ResponsesEncoder) ensureStarted() []RawEvent {
	if e.started {
		return nil
	}
	e.started = true
	return []RawEvent{
		e.frame("response.created", map[string]any{"id": e.ID, "model": e.Model}),
		e.frame("response.in_progress", map[string]any{"id": e.ID}),
	}
}

func (e *ResponsesEncoder) Encode(ev Event) ([]RawEvent, error) {
	out := e.ensureStarted()

	switch ev.Kind {
	case KindTextDelta:
		if !e.textStarted {
			e.textStarted = true
			e.textIndex = e.nextOutputIndex
			e.nextOutputIndex++
			out = append(out, e.frame("response.output_item.added", map[string]any{
				"output_index": e.textIndex,
				"item":         map[string]any{"type": "message"},
			}))
		}
		e.textBuf.WriteString(ev.TextDelta)
		out = append(out, e.frame("response.output_text.delta", map[string]any{
			"output_index": e.textIndex,
			"delta":        ev.TextDelta,
		}))
		return out, nil

	case KindReasoningDelta:
		if !e.reasoningStarted {
			e.reasoningStarted = true
			e.reasoningIndex = e.nextOutputIndex
			e.nextOutputIndex++
			out = append(out, e.frame("response.output_item.added", map[string]any{
				"output_index": e.reasoningIndex,
				"item":         map[string]any{"type": "reasoning"},
			}))
		}
		out = append(out, e.frame("response.reasoning_text.delta", map[string]any{
			"output_index": e.reasoningIndex,
			"delta":        ev.ReasoningDelta,
		}))
		return out, nil

	case KindReasoningSignatureDelta:
		out = append(out, e.frame("response.reasoning_signature.delta", map[string]any{
			"output_index": e.reasoningIndex,
			"delta":        ev.ReasoningSignatureDelta,
		}))
		return out, nil

	case KindToolCallDelta:
		idx, seen := e.toolOutputIndex[ev.ToolCall.CorrelationKey]
		if !seen {
			idx = e.nextOutputIndex
			e.nextOutputIndex++
			e.toolOutputIndex[ev.ToolCall.CorrelationKey] = idx
			e.toolIdentity[ev.ToolCall.CorrelationKey] = struct{ callID, name string }{ev.ToolCall.CallID, ev.ToolCall.Name}
			out = append(out, e.frame("response.output_item.added", map[string]any{
				"output_index": idx,
				"item":         map[string]any{"type": "function_call", "call_id": ev.ToolCall.CallID, "name": ev.ToolCall.Name},
			}))
		}
		out = append(out, e.frame("response.function_call_arguments.delta", map[string]any{
			"output_index": idx,
			"delta":        ev.ToolCall.ArgumentsDelta,
		}))
		return out, nil

	case KindToolCallDone:
		idx := e.toolOutputIndex[ev.ToolCall.CorrelationKey]
		out = append(out,
			e.frame("response.function_call_arguments.done", map[string]any{"output_index": idx}),
			e.frame("response.output_item.done", map[string]any{"output_index": idx}),
		)
		return out, nil

	case KindUsage:
		e.usage = ev.Usage
		return out, nil

	case KindFinish:
		if !e.textStarted {
			out = append(out, e.frame("response.output_text.delta", map[string]any{"output_index": 0, "delta": ""}))
		}
		out = append(out, e.frame("response.output_text.done", map[string]any{
			"output_index": e.textIndex,
			"text":         e.textBuf.String(),
		}))
		if e.textStarted {
			out = append(out, e.frame("response.output_item.done", map[string]any{"output_index": e.textIndex}))
		}
		response := map[string]any{"id": e.ID, "model": e.Model, "status": "completed"}
		if e.usage != nil {
			response["usage"] = map[string]any{
				"input_tokens":        e.usage.PromptTokens,
				"output_tokens":       e.usage.CompletionTokens,
				"reasoning_tokens":    e.usage.ReasoningTokens,
				"cached_input_tokens": e.usage.CachedTokens,
			}
		}
		out = append(out, e.frame("response.completed", map[string]any{"response": response}))
		return out, nil

	case KindError:
		out = append(out, e.frame("error", map[string]any{"message": ev.Err.Error()}))
		return out, nil

	default:
		return nil, fmt.Errorf("stream: responses encoder: unhandled event kind %d", ev.Kind)
	}
}

func (e *ResponsesEncoder) Close() []RawEvent {
	return nil
}
