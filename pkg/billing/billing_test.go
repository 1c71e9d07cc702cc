package billing_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/nexrelay/gatewaycore/pkg/billing"
	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/money"
	"github.com/nexrelay/gatewaycore/pkg/store"
	"github.com/nexrelay/gatewaycore/pkg/store/memstore"
	"github.com/nexrelay/gatewaycore/pkg/urp"
)

func reasoningRate(n int64) *int64 { return &n }

func TestCanonicalizeModelID(t *testing.T) {
	assert.Equal(t, "gpt-4o", billing.CanonicalizeModelID("openai", "openai/gpt-4o"))
	assert.Equal(t, "claude-3-opus", billing.CanonicalizeModelID("anthropic", "anthropic--claude-3-opus"))
	assert.Equal(t, "gemini-pro", billing.CanonicalizeModelID("google", "google.gemini-pro"))
	assert.Equal(t, "untouched-model", billing.CanonicalizeModelID("openai", "untouched-model"))
}

func TestComputeChargeWithoutCachedOrReasoningRates(t *testing.T) {
	pricing := store.ModelPricing{ModelID: "gpt-4o", InputRateNano: 1000, OutputRateNano: 2000}
	usage := urp.Usage{PromptTokens: 10, CompletionTokens: 5}

	final, bd, err := billing.ComputeCharge(usage, pricing, 1.0)
	require.NoError(t, err)
	assert.Equal(t, "20000", bd.BaseNano)
	n, ok := final.Nano()
	require.True(t, ok)
	assert.Equal(t, int64(20000), n)
}

func TestComputeChargeWithCachedAndReasoningSplit(t *testing.T) {
	cachedRate := int64(200)
	pricing := store.ModelPricing{
		ModelID:           "gpt-4o",
		InputRateNano:     1000,
		OutputRateNano:    2000,
		CachedRateNano:    &cachedRate,
		ReasoningRateNano: reasoningRate(500),
	}
	cached := int64(4)
	reasoning := int64(2)
	usage := urp.Usage{PromptTokens: 10, CompletionTokens: 5, CachedTokens: &cached, ReasoningTokens: &reasoning}

	// prompt: (10-4)*1000 + 4*200 = 6000+800 = 6800
	// completion: (5-2)*2000 + 2*500 = 6000+1000 = 7000
	final, bd, err := billing.ComputeCharge(usage, pricing, 1.0)
	require.NoError(t, err)
	assert.Equal(t, "6800", bd.PromptChargeNano)
	assert.Equal(t, "7000", bd.CompletionChargeNano)
	n, ok := final.Nano()
	require.True(t, ok)
	assert.Equal(t, int64(13800), n)
}

func TestComputeChargeScalesByMultiplier(t *testing.T) {
	pricing := store.ModelPricing{ModelID: "m", InputRateNano: 1000, OutputRateNano: 1000}
	usage := urp.Usage{PromptTokens: 10, CompletionTokens: 10}

	final, _, err := billing.ComputeCharge(usage, pricing, 2.0)
	require.NoError(t, err)
	n, ok := final.Nano()
	require.True(t, ok)
	assert.Equal(t, int64(40000), n)
}

func TestComputeChargeRejectsNonFiniteMultiplier(t *testing.T) {
	pricing := store.ModelPricing{ModelID: "m", InputRateNano: 1000, OutputRateNano: 1000}
	usage := urp.Usage{PromptTokens: 1, CompletionTokens: 1}

	_, _, err := billing.ComputeCharge(usage, pricing, math.NaN())
	assert.ErrorIs(t, err, money.ErrNotComputable)
}

func TestPreflightRejectsZeroBalance(t *testing.T) {
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "0"},
	})
	engine := &billing.Engine{Users: users}

	err := engine.Preflight(context.Background(), "u1")
	require.Error(t, err)
	var gwErr *gatewayerrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerrors.KindInsufficientBalance, gwErr.Kind)
}

func TestPreflightAllowsUnlimitedWithZeroBalance(t *testing.T) {
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "0", BalanceUnlimited: true},
	})
	engine := &billing.Engine{Users: users}

	require.NoError(t, engine.Preflight(context.Background(), "u1"))
}

func TestChargeDebitsLedgerUsingRawNanoStrings(t *testing.T) {
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "1000000"},
	})
	pricing := memstore.NewModelMetadataStore(store.ModelPricing{ModelID: "gpt-4o", InputRateNano: 1000, OutputRateNano: 1000})
	engine := &billing.Engine{Users: users, Pricing: pricing, Ledger: users}

	tracer := otel.Tracer("billing_test")
	_, span := tracer.Start(context.Background(), "test")
	defer span.End()

	usage := urp.Usage{PromptTokens: 10, CompletionTokens: 10}
	entry, bd, priced, err := engine.Charge(context.Background(), span, "u1", "gpt-4o", usage, 1.0)
	require.NoError(t, err)
	require.True(t, priced)
	require.NotNil(t, entry)
	require.NotNil(t, bd)
	assert.Equal(t, "-20000", entry.DeltaNano)
	assert.Equal(t, "980000", entry.BalanceAfterNano)

	balance, err := users.GetBalance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "980000", balance.BalanceNanoUSD)
}

func TestChargeFailsInsufficientBalanceWithoutDebiting(t *testing.T) {
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "100"},
	})
	pricing := memstore.NewModelMetadataStore(store.ModelPricing{ModelID: "gpt-4o", InputRateNano: 1000, OutputRateNano: 1000})
	engine := &billing.Engine{Users: users, Pricing: pricing, Ledger: users}

	usage := urp.Usage{PromptTokens: 10, CompletionTokens: 10}
	_, _, priced, err := engine.Charge(context.Background(), nil, "u1", "gpt-4o", usage, 1.0)
	require.Error(t, err)
	require.True(t, priced)
	var gwErr *gatewayerrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerrors.KindInsufficientBalance, gwErr.Kind)

	balance, berr := users.GetBalance(context.Background(), "u1")
	require.NoError(t, berr)
	assert.Equal(t, "100", balance.BalanceNanoUSD)
}

func TestChargeReturnsUnpricedWhenNoPricingRow(t *testing.T) {
	users := memstore.NewUserStore(store.User{UserID: "u1", Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "0", BalanceUnlimited: true}})
	pricing := memstore.NewModelMetadataStore()
	engine := &billing.Engine{Users: users, Pricing: pricing, Ledger: users}

	entry, bd, priced, err := engine.Charge(context.Background(), nil, "u1", "unknown-model", urp.Usage{}, 1.0)
	require.NoError(t, err)
	assert.False(t, priced)
	assert.Nil(t, entry)
	assert.Nil(t, bd)
}

func TestChargeAppliesNoChargeOnOverflowMultiplier(t *testing.T) {
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "1000000", BalanceUnlimited: true},
	})
	pricing := memstore.NewModelMetadataStore(store.ModelPricing{ModelID: "gpt-4o", InputRateNano: 1000, OutputRateNano: 1000})
	engine := &billing.Engine{Users: users, Pricing: pricing, Ledger: users}

	tracer := otel.Tracer("billing_test")
	_, span := tracer.Start(context.Background(), "test")
	defer span.End()

	usage := urp.Usage{PromptTokens: 10, CompletionTokens: 10}
	entry, bd, priced, err := engine.Charge(context.Background(), span, "u1", "gpt-4o", usage, math.Inf(1))
	require.NoError(t, err)
	require.True(t, priced)
	assert.Nil(t, entry)
	assert.Nil(t, bd)

	balance, _ := users.GetBalance(context.Background(), "u1")
	assert.Equal(t, "1000000", balance.BalanceNanoUSD)
}

func TestAdminAdjustSetsAbsoluteBalanceAndComputesSignedDelta(t *testing.T) {
	users := memstore.NewUserStore(store.User{UserID: "u1", Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "500"}})
	engine := &billing.Engine{Users: users, Ledger: users}

	entry, err := engine.AdminAdjust(context.Background(), "u1", money.FromNano(2000), false, map[string]any{"reason": "top-up"})
	require.NoError(t, err)
	assert.Equal(t, "1500", entry.DeltaNano)
	assert.Equal(t, "2000", entry.BalanceAfterNano)
	assert.Equal(t, store.LedgerAdminAdjustment, entry.Kind)
}
