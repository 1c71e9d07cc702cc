// Package requestlog writes the pending-then-finalize request log row
// described by spec §4.I: a single row per request that live dashboards can
// see as soon as it is admitted, and that is finalized exactly once with
// its terminal outcome.
package requestlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexrelay/gatewaycore/pkg/store"
	"github.com/nexrelay/gatewaycore/pkg/telemetry"
)

// Identity is the fixed set of fields known when a request is admitted.
type Identity struct {
	UserID        string
	ApiKeyID      string
	ProviderID    string
	UpstreamModel string
	ChannelID     string
	IsStream      bool
	RequestKind   string
	RequestIP     string
}

// Usage is the token-count breakdown captured at finalize time.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	CachedTokens     int64
	ReasoningTokens  int64
}

// Billing is the billing-side fields captured at finalize time. ChargeNano
// is nil when the request was never priced or produced no charge.
type Billing struct {
	ChargeNano       *string
	BillingBreakdown map[string]any
	UsageBreakdown   map[string]any
}

// Trace is the attempt/timing trace captured at finalize time.
type Trace struct {
	TriedProvidersJSON string
	ReasoningEffort    string
	DurationMS         int64
	TTFBMS             int64
}

// Outcome is the terminal status captured at finalize time.
type Outcome struct {
	Status          store.RequestLogStatus
	ErrorCode       string
	ErrorMessage    string
	ErrorHTTPStatus int
}

// Writer wraps a store.RequestLogStore so callers never have to handle its
// errors directly — a failing log writer is a warning, never a request
// failure (spec §4.I: "Errors in the log writer are warnings and never fail
// the user request").
type Writer struct {
	Store  store.RequestLogStore
	Tracer trace.Tracer
}

// Admit inserts a pending row immediately after authentication succeeds.
// Called only when the client supplied a request id (spec §4.I); the
// caller is responsible for that check, since Writer has no opinion on
// where the request id comes from.
func (w *Writer) Admit(ctx context.Context, span trace.Span, requestID string, identity Identity) {
	if w == nil || w.Store == nil {
		return
	}
	row := store.RequestLogRow{
		RequestID:     requestID,
		UserID:        identity.UserID,
		ApiKeyID:      identity.ApiKeyID,
		ProviderID:    identity.ProviderID,
		UpstreamModel: identity.UpstreamModel,
		ChannelID:     identity.ChannelID,
		IsStream:      identity.IsStream,
		RequestKind:   identity.RequestKind,
		RequestIP:     identity.RequestIP,
		Status:        store.LogPending,
		CreatedAt:     now(),
	}
	if err := w.Store.InsertPending(ctx, row); err != nil {
		warn(span, "requestlog: insert pending failed", requestID, err)
	}
}

// Finalize overwrites the pending row for requestID with its terminal
// fields. Safe to call even when Admit was never called (e.g. the client
// supplied no request id and the caller still wants best-effort logging on
// a synthesized id), since Finalize does not require a prior pending row.
func (w *Writer) Finalize(ctx context.Context, span trace.Span, requestID string, identity Identity, usage Usage, billing Billing, tr Trace, outcome Outcome) {
	if w == nil || w.Store == nil {
		return
	}
	finalizedAt := now()
	row := store.RequestLogRow{
		RequestID:     requestID,
		UserID:        identity.UserID,
		ApiKeyID:      identity.ApiKeyID,
		ProviderID:    identity.ProviderID,
		UpstreamModel: identity.UpstreamModel,
		ChannelID:     identity.ChannelID,
		IsStream:      identity.IsStream,
		RequestKind:   identity.RequestKind,
		RequestIP:     identity.RequestIP,

		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CachedTokens:     usage.CachedTokens,
		ReasoningTokens:  usage.ReasoningTokens,

		ChargeNanoUSD:    billing.ChargeNano,
		BillingBreakdown: billing.BillingBreakdown,
		UsageBreakdown:   billing.UsageBreakdown,

		TriedProvidersJSON: tr.TriedProvidersJSON,
		ReasoningEffort:    tr.ReasoningEffort,
		DurationMS:         tr.DurationMS,
		TTFBMS:             tr.TTFBMS,

		Status:          outcome.Status,
		ErrorCode:       outcome.ErrorCode,
		ErrorMessage:    outcome.ErrorMessage,
		ErrorHTTPStatus: outcome.ErrorHTTPStatus,

		FinalizedAt: &finalizedAt,
	}
	if err := w.Store.Finalize(ctx, requestID, row); err != nil {
		warn(span, "requestlog: finalize failed", requestID, err)
	}
}

func warn(span trace.Span, message, requestID string, err error) {
	if span == nil {
		return
	}
	telemetry.WarnOnSpan(span, message, attribute.String("request_id", requestID), attribute.String("error", err.Error()))
}

// now is a seam so tests can observe deterministic timestamps without the
// package reaching for time.Now() directly in more than one place.
var now = time.Now
