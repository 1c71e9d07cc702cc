package stream

import (
	"context"
	"io"
	"time"

	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// EventChannelCapacity bounds the producer/consumer channel (spec §5:
// "SSE forward channel has a bounded capacity (recommended ~64 events)").
const EventChannelCapacity = 64

// Result summarizes what a Transcode run observed, for billing and the
// request log.
type Result struct {
	FirstByteLatency time.Duration
	Usage            *urp.Usage
	FinishReason      urp.FinishReason
	Err               error
}

// Transcode reads raw SSE frames from upstreamBody through decoder, forwards
// the neutral events through a bounded channel, and writes them through
// encoder to downstream, flushing after every write. It returns once the
// upstream stream ends (or upstreamBody/ctx signal a stop), having already
// written every frame including the encoder's Close() trailer.
//
// If the downstream consumer stops (client disconnect, flush error), the
// producer's channel send is unblocked via ctx cancellation and the
// function returns promptly; upstreamBody should be closed by the caller's
// defer regardless of how Transcode returns.
func Transcode(ctx context.Context, upstreamBody io.Reader, decoder Decoder, downstream *RawWriter, encoder Encoder, flush func(), start time.Time) Result {
	events := make(chan Event, EventChannelCapacity)
	produceErr := make(chan error, 1)

	go func() {
		defer close(events)
		parser := NewRawParser(upstreamBody)
		for {
			raw, err := parser.Next()
			if err == io.EOF {
				produceErr <- nil
				return
			}
			if err != nil {
				produceErr <- err
				return
			}
			if IsDone(raw) {
				produceErr <- nil
				return
			}

			decoded, derr := decoder.Decode(raw)
			if derr != nil {
				produceErr <- derr
				return
			}
			for _, ev := range decoded {
				select {
				case events <- ev:
				case <-ctx.Done():
					produceErr <- ctx.Err()
					return
				}
			}
		}
	}()

	var result Result
	first := true

	for ev := range events {
		if first {
			result.FirstByteLatency = time.Since(start)
			first = false
		}
		if ev.Kind == KindUsage {
			result.Usage = ev.Usage
		}
		if ev.Kind == KindFinish {
			result.FinishReason = ev.FinishReason
		}

		frames, err := encoder.Encode(ev)
		if err != nil {
			result.Err = err
			continue
		}
		for _, f := range frames {
			if werr := downstream.WriteEvent(f); werr != nil {
				result.Err = werr
				return result
			}
		}
		if flush != nil {
			flush()
		}
	}

	for _, f := range encoder.Close() {
		if werr := downstream.WriteEvent(f); werr != nil {
			result.Err = werr
			return result
		}
	}
	if flush != nil {
		flush()
	}

	if err := <-produceErr; err != nil && result.Err == nil {
		result.Err = err
	}
	return result
}

// DecoderFor returns the upstream decoder for kind (Grok reuses Chat's,
// since it is Chat-Completions-wire-compatible).
func DecoderFor(kind string) Decoder {
	switch kind {
	case "responses":
		return NewResponsesDecoder()
	case "messages":
		return NewMessagesDecoder()
	case "gemini":
		return NewGeminiDecoder()
	default: // "chat", "grok"
		return NewChatDecoder()
	}
}

// EncoderFor returns the downstream encoder for kind.
func EncoderFor(kind, id, model string) Encoder {
	switch kind {
	case "responses":
		return NewResponsesEncoder(id, model)
	case "messages":
		return NewMessagesEncoder(id, model)
	default: // "chat"
		return NewChatEncoder(id, model)
	}
}

// SyntheticReplay turns a complete URP response into the same neutral event
// sequence a live stream would have produced, for the response-phase-
// transform fallback (spec §4.D: "the request is fetched non-streaming
// upstream, transforms applied to the URP response, and the result
// replayed as a synthetic stream that preserves the downstream shape's
// event vocabulary").
func SyntheticReplay(resp *urp.Response) []Event {
	var out []Event

	for _, part := range resp.Message.Parts {
		switch p := part.(type) {
		case urp.TextPart:
			out = append(out, Event{Kind: KindTextDelta, TextDelta: p.Content})
		case urp.ReasoningPart:
			out = append(out, Event{Kind: KindReasoningDelta, ReasoningDelta: p.Content})
		case urp.ToolCallPart:
			out = append(out,
				Event{Kind: KindToolCallDelta, ToolCall: &ToolCallDelta{CorrelationKey: p.CallID, CallID: p.CallID, Name: p.Name, ArgumentsDelta: p.Arguments}},
				Event{Kind: KindToolCallDone, ToolCall: &ToolCallDelta{CorrelationKey: p.CallID, CallID: p.CallID, Name: p.Name}},
			)
		}
	}

	if resp.Usage != nil {
		out = append(out, Event{Kind: KindUsage, Usage: resp.Usage})
	}
	out = append(out, Event{Kind: KindFinish, FinishReason: resp.FinishReason})

	return out
}
