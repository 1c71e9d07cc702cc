package stream

import (
	"encoding/json"
	"fmt"

	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// MessagesDecoder decodes Anthropic Messages-shape SSE events (spec §6:
// message_start, content_block_start|delta|stop, message_delta,
// message_stop, error) into neutral events.
type MessagesDecoder struct {
	lastUsage *urp.Usage
	// blockKinds tracks content_block index -> its declared type, so a
	// later delta/stop knows whether it's text, tool_use, or thinking.
	blockKinds map[string]string
	blockCalls map[string]struct{ callID, name string }
}

// NewMessagesDecoder builds an empty decoder.
func NewMessagesDecoder() *MessagesDecoder {
	return &MessagesDecoder{
		blockKinds: make(map[string]string),
		blockCalls: make(map[string]struct{ callID, name string }),
	}
}

func (d *MessagesDecoder) Decode(raw *RawEvent) ([]Event, error) {
	switch raw.Event {
	case "message_start":
		var inner struct {
			Message struct {
				Usage *struct {
					InputTokens              int64  `json:"input_tokens"`
					OutputTokens             int64  `json:"output_tokens"`
					CacheReadInputTokens     *int64 `json:"cache_read_input_tokens"`
				} `json:"usage"`
			} `json:"message"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &inner); err != nil {
			return nil, fmt.Errorf("stream: decode message_start: %w", err)
		}
		if inner.Message.Usage == nil {
			return nil, nil
		}
		u := &urp.Usage{
			PromptTokens:     inner.Message.Usage.InputTokens,
			CompletionTokens: inner.Message.Usage.OutputTokens,
			CachedTokens:     inner.Message.Usage.CacheReadInputTokens,
		}
		d.lastUsage = u
		return []Event{{Kind: KindUsage, Usage: u}}, nil

	case "content_block_start":
		var inner struct {
			Index        int `json:"index"`
			ContentBlock struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"content_block"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &inner); err != nil {
			return nil, fmt.Errorf("stream: decode content_block_start: %w", err)
		}
		key := fmt.Sprintf("%d", inner.Index)
		d.blockKinds[key] = inner.ContentBlock.Type
		if inner.ContentBlock.Type == "tool_use" {
			d.blockCalls[key] = struct{ callID, name string }{inner.ContentBlock.ID, inner.ContentBlock.Name}
		}
		return nil, nil

	case "content_block_delta":
		var inner struct {
			Index int `json:"index"`
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
				Thinking    string `json:"thinking"`
				Signature   string `json:"signature"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &inner); err != nil {
			return nil, fmt.Errorf("stream: decode content_block_delta: %w", err)
		}
		key := fmt.Sprintf("%d", inner.Index)
		switch inner.Delta.Type {
		case "text_delta":
			return []Event{{Kind: KindTextDelta, TextDelta: inner.Delta.Text}}, nil
		case "thinking_delta":
			return []Event{{Kind: KindReasoningDelta, ReasoningDelta: inner.Delta.Thinking}}, nil
		case "signature_delta":
			return []Event{{Kind: KindReasoningSignatureDelta, ReasoningSignatureDelta: inner.Delta.Signature}}, nil
		case "input_json_delta":
			id := d.blockCalls[key]
			return []Event{{Kind: KindToolCallDelta, ToolCall: &ToolCallDelta{
				CorrelationKey: key,
				CallID:         id.callID,
				Name:           id.name,
				ArgumentsDelta: inner.Delta.PartialJSON,
			}}}, nil
		default:
			return nil, nil
		}

	case "content_block_stop":
		var inner struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &inner); err != nil {
			return nil, fmt.Errorf("stream: decode content_block_stop: %w", err)
		}
		key := fmt.Sprintf("%d", inner.Index)
		if d.blockKinds[key] != "tool_use" {
			return nil, nil
		}
		id := d.blockCalls[key]
		return []Event{{Kind: KindToolCallDone, ToolCall: &ToolCallDelta{CorrelationKey: key, CallID: id.callID, Name: id.name}}}, nil

	case "message_delta":
		var inner struct {
			Delta struct {
				StopReason string `json:"stop_reason"`
			} `json:"delta"`
			Usage *struct {
				OutputTokens int64 `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &inner); err != nil {
			return nil, fmt.Errorf("stream: decode message_delta: %w", err)
		}
		var out []Event
		if inner.Usage != nil && d.lastUsage != nil {
			u := *d.lastUsage
			u.CompletionTokens = inner.Usage.OutputTokens
			if u.GreaterOrEqual(*d.lastUsage) {
				d.lastUsage = &u
				out = append(out, Event{Kind: KindUsage, Usage: &u})
			}
		}
		out = append(out, Event{Kind: KindFinish, FinishReason: finishReasonFromAnthropic(inner.Delta.StopReason)})
		return out, nil

	case "message_stop":
		return nil, nil

	case "error":
		var inner struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(raw.Data), &inner); err != nil {
			return nil, fmt.Errorf("stream: decode error event: %w", err)
		}
		return []Event{{Kind: KindError, Err: gatewayerrors.New(gatewayerrors.KindUpstreamError, inner.Error.Message)}}, nil

	default:
		return nil, nil
	}
}

func finishReasonFromAnthropic(reason string) urp.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return urp.FinishStop
	case "max_tokens":
		return urp.FinishLength
	case "tool_use":
		return urp.FinishToolCalls
	default:
		return urp.FinishStop
	}
}
