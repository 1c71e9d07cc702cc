package routing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/health"
	"github.com/nexrelay/gatewaycore/pkg/upstream"
)

// TriedProvider records one exhausted attempt, surfaced back to the caller
// on total failure and to the request log (spec §4.F: "record a
// TriedProvider entry {provider_id, channel_id, error_message}").
type TriedProvider struct {
	ProviderID   string
	ChannelID    string
	ErrorMessage string
}

// Invoker performs one upstream attempt. It is injected so the execution
// loop stays independent of the concrete HTTP client (and is trivially
// fakeable in tests).
type Invoker func(ctx context.Context, target upstream.Target, path string) upstream.Outcome

// HealthConfig carries the passive-failure thresholds the loop needs to
// record outcomes against the health store (spec §4.D).
type HealthConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Result is the outcome of executing an attempt list to completion: either
// a successful Outcome with the attempt that produced it, or an exhausted
// error alongside every attempt that was tried.
type Result struct {
	Outcome  upstream.Outcome
	Attempt  Attempt
	Tried    []TriedProvider
	Exhausted bool
	Err      *gatewayerrors.GatewayError
}

// Execute walks attempts in order, invoking each via invoke and applying
// spec §4.F's retry/terminate rules:
//   - a non-retryable client error (HTTP 400/401/403/422) terminates
//     immediately, surfacing that error to the caller;
//   - a retryable error records a TriedProvider entry, marks the channel's
//     passive failure, and advances to the next attempt;
//   - a successful outcome records the channel's passive success and
//     returns immediately;
//   - exhausting the list surfaces a synthetic "no available upstream
//     provider" error.
func Execute(ctx context.Context, attempts []Attempt, model string, buildTarget func(Attempt) (upstream.Target, string), invoke Invoker, healthStore health.Store, hc HealthConfig) Result {
	var tried []TriedProvider

	for _, attempt := range attempts {
		target, path := buildTarget(attempt)
		outcome := invoke(ctx, target, path)

		if outcome.NetworkErr == nil && outcome.HTTPErr == nil {
			_ = healthStore.RecordSuccess(ctx, attempt.Channel.ID, time.Now())
			return Result{Outcome: outcome, Attempt: attempt, Tried: tried}
		}

		statusCode := outcome.StatusCode
		if outcome.NetworkErr != nil {
			statusCode = 0
		}

		if !gatewayerrors.Retryable(statusCode) {
			return Result{
				Outcome: outcome,
				Attempt: attempt,
				Tried:   tried,
				Err:     terminalError(outcome),
			}
		}

		message := errorMessage(outcome)
		tried = append(tried, TriedProvider{
			ProviderID:   attempt.Provider.ID,
			ChannelID:    attempt.Channel.ID,
			ErrorMessage: message,
		})
		_ = healthStore.RecordFailure(ctx, attempt.Channel.ID, hc.FailureThreshold, hc.Cooldown, time.Now())
	}

	return Result{
		Tried:     tried,
		Exhausted: true,
		Err:       gatewayerrors.New(gatewayerrors.KindUpstreamError, fmt.Sprintf("upstream_error: no available upstream provider for model: %s", model)),
	}
}

func terminalError(outcome upstream.Outcome) *gatewayerrors.GatewayError {
	if outcome.HTTPErr != nil {
		return outcome.HTTPErr
	}
	return gatewayerrors.New(gatewayerrors.KindUpstreamError, outcome.NetworkErr.Error())
}

func errorMessage(outcome upstream.Outcome) string {
	if outcome.HTTPErr != nil {
		return outcome.HTTPErr.Error()
	}
	if outcome.NetworkErr != nil {
		return outcome.NetworkErr.Error()
	}
	return ""
}

// NewHTTPInvoker adapts upstream.Invoke to the Invoker signature for
// non-streaming attempts.
func NewHTTPInvoker(client *http.Client) Invoker {
	return func(ctx context.Context, target upstream.Target, path string) upstream.Outcome {
		return upstream.Invoke(ctx, client, target, path)
	}
}
