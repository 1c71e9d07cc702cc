// Package stream transcodes between upstream and downstream SSE shapes
// through one neutral event vocabulary (spec §4.D): upstream SSE -> []Event
// -> downstream SSE, rather than a dedicated state machine per
// upstream/downstream pair.
package stream

import (
	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// Kind discriminates the neutral event vocabulary every upstream decoder
// produces and every downstream encoder consumes.
type Kind int

const (
	KindTextDelta Kind = iota
	KindReasoningDelta
	KindReasoningSignatureDelta
	KindToolCallDelta
	KindToolCallDone
	KindUsage
	KindFinish
	KindError
	KindDone
)

// ToolCallDelta carries one piecewise fragment of a tool call.
// CorrelationKey identifies which in-flight call this fragment belongs to
// (Responses: output_index; Chat: tool_calls[*].index; Messages:
// content_block index) — it never crosses the wire itself.
type ToolCallDelta struct {
	CorrelationKey string
	CallID         string
	Name           string
	ArgumentsDelta string
}

// Event is the neutral unit the transcoder moves between decoder and
// encoder.
type Event struct {
	Kind                    Kind
	TextDelta               string
	ReasoningDelta          string
	ReasoningSignatureDelta string
	ToolCall                *ToolCallDelta
	Usage                   *urp.Usage
	FinishReason            urp.FinishReason
	Err                     *gatewayerrors.GatewayError
}

// Decoder turns one upstream RawEvent into zero or more neutral Events. It
// is stateful: it tracks the running usage snapshot and the in-flight
// tool-call correlation map across calls.
type Decoder interface {
	Decode(raw *RawEvent) ([]Event, error)
}

// Encoder turns one neutral Event into zero or more downstream RawEvents.
// It is stateful: it tracks block/output-item indices and the Responses
// sequence counter across calls.
type Encoder interface {
	Encode(ev Event) ([]RawEvent, error)
	// Close flushes any trailing frames the downstream shape requires once
	// the upstream stream has ended (e.g. Chat's "[DONE]" sentinel,
	// Messages' message_stop, Responses' response.completed).
	Close() []RawEvent
}
