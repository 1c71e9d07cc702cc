// Package billing computes usage-based charges and applies them atomically
// against the ledger (spec §4.H).
package billing

import (
	"context"
	"math/big"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/money"
	"github.com/nexrelay/gatewaycore/pkg/store"
	"github.com/nexrelay/gatewaycore/pkg/telemetry"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

// parseNanoString parses a raw, text-persisted nano-integer such as
// store.UserBalance.BalanceNanoUSD or store.LedgerEntry.DeltaNano — a plain
// base-10 big.Int literal, not a money.Parse decimal-USD literal.
func parseNanoString(s string) (money.Amount, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return money.Zero(), gatewayerrors.New(gatewayerrors.KindInternal, "billing: malformed nano amount")
	}
	return money.FromBigNano(n), nil
}

// providerPrefixSeparators are the known provider-prefix separators model
// ids are canonicalized by stripping (spec §6).
var providerPrefixSeparators = []string{"/", "--", "."}

// CanonicalizeModelID strips a known provider prefix from modelID so it can
// be looked up in ModelMetadataStore, which is keyed by canonical model id.
func CanonicalizeModelID(providerID, modelID string) string {
	for _, sep := range providerPrefixSeparators {
		prefix := providerID + sep
		if strings.HasPrefix(modelID, prefix) {
			return modelID[len(prefix):]
		}
	}
	return modelID
}

// Breakdown is the per-charge JSON block persisted alongside the ledger
// entry and the request log row.
type Breakdown struct {
	PromptChargeNano     string  `json:"prompt_charge_nano"`
	CompletionChargeNano string  `json:"completion_charge_nano"`
	BaseNano             string  `json:"base_nano"`
	Multiplier           float64 `json:"multiplier"`
	FinalNano            string  `json:"final_nano"`
}

// ComputeCharge implements spec §4.H steps 1-3: prompt charge with a cached-
// token discount when one is priced, completion charge with a reasoning-
// token split when one is priced, summed and scaled by multiplier.
func ComputeCharge(usage urp.Usage, pricing store.ModelPricing, multiplier float64) (money.Amount, Breakdown, error) {
	promptCharge := promptCharge(usage, pricing)
	completionCharge := completionCharge(usage, pricing)

	base, err := money.CheckedAdd(promptCharge, completionCharge)
	if err != nil {
		return money.Zero(), Breakdown{}, err
	}

	final, err := money.MulFloatMultiplier(base, multiplier)
	if err != nil {
		return money.Zero(), Breakdown{}, err
	}

	return final, Breakdown{
		PromptChargeNano:     promptCharge.BigNano().String(),
		CompletionChargeNano: completionCharge.BigNano().String(),
		BaseNano:             base.BigNano().String(),
		Multiplier:           multiplier,
		FinalNano:            final.BigNano().String(),
	}, nil
}

func promptCharge(usage urp.Usage, pricing store.ModelPricing) money.Amount {
	if pricing.CachedRateNano == nil {
		return money.FromNano(usage.PromptTokens * pricing.InputRateNano)
	}
	cached := int64(0)
	if usage.CachedTokens != nil {
		cached = *usage.CachedTokens
	}
	billable := usage.PromptTokens - cached
	if billable < 0 {
		billable = 0
	}
	return money.FromNano(billable*pricing.InputRateNano + cached**pricing.CachedRateNano)
}

func completionCharge(usage urp.Usage, pricing store.ModelPricing) money.Amount {
	if pricing.ReasoningRateNano == nil {
		return money.FromNano(usage.CompletionTokens * pricing.OutputRateNano)
	}
	reasoning := int64(0)
	if usage.ReasoningTokens != nil {
		reasoning = *usage.ReasoningTokens
	}
	billable := usage.CompletionTokens - reasoning
	if billable < 0 {
		billable = 0
	}
	return money.FromNano(billable*pricing.OutputRateNano + reasoning**pricing.ReasoningRateNano)
}

// Engine applies spec §4.H's pre-flight admissibility check and the
// charge-then-debit sequence.
type Engine struct {
	Users   store.UserStore
	Pricing store.ModelMetadataStore
	Ledger  store.LedgerStore
	Tracer  trace.Tracer
}

// Preflight asserts admissibility before any upstream call is made (spec
// §4.H: "before any upstream call, assert admissibility (unlimited or
// balance > 0)").
func (e *Engine) Preflight(ctx context.Context, userID string) error {
	balance, err := e.Users.GetBalance(ctx, userID)
	if err != nil {
		return err
	}
	if balance.BalanceUnlimited {
		return nil
	}
	amt, err := parseNanoString(balance.BalanceNanoUSD)
	if err != nil {
		return err
	}
	if amt.Sign() <= 0 {
		return gatewayerrors.New(gatewayerrors.KindInsufficientBalance, "insufficient_balance")
	}
	return nil
}

// Charge computes and atomically debits the charge for one completed call.
// A nil entry with a nil error means the call was priced but produced no
// charge (zero usage, or an overflow/non-finite multiplier — spec §4.H
// step 4: "no charge, warning logged, request still succeeds"). A nil
// entry, nil error, and priced=false is also returned when canonicalModel
// has no pricing row at all (spec §3: "priced" upstream model).
func (e *Engine) Charge(ctx context.Context, span trace.Span, userID, canonicalModel string, usage urp.Usage, multiplier float64) (entry *store.LedgerEntry, breakdown *Breakdown, priced bool, err error) {
	pricing, ok, err := e.Pricing.GetPricing(ctx, canonicalModel)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}

	final, bd, err := ComputeCharge(usage, pricing, multiplier)
	if err != nil {
		if span != nil {
			telemetry.WarnOnSpan(span, "billing: charge not computable, no charge applied", attribute.String("model", canonicalModel), attribute.String("reason", err.Error()))
		}
		return nil, nil, true, nil
	}

	if final.Sign() <= 0 {
		return nil, &bd, true, nil
	}

	ledgerEntry, debited, err := e.Ledger.Debit(ctx, userID, final.BigNano().String(), map[string]any{"breakdown": bd})
	if err != nil {
		return nil, nil, true, err
	}
	if !debited {
		return nil, nil, true, gatewayerrors.New(gatewayerrors.KindInsufficientBalance, "insufficient_balance")
	}
	return &ledgerEntry, &bd, true, nil
}

// AdminAdjust sets userID's absolute balance (and unlimited toggle),
// appending a ledger entry whose delta is computed by LedgerStore relative
// to the prior balance (spec §4.H step 6).
func (e *Engine) AdminAdjust(ctx context.Context, userID string, newBalance money.Amount, unlimited bool, meta map[string]any) (store.LedgerEntry, error) {
	return e.Ledger.AdminAdjust(ctx, userID, newBalance.BigNano().String(), unlimited, meta)
}
