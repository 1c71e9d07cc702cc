package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/store"
	"github.com/nexrelay/gatewaycore/pkg/store/memstore"
)

func TestDebitInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "100"},
	})

	_, ok, err := users.Debit(ctx, "u1", "500", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	bal, err := users.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "100", bal.BalanceNanoUSD)
	assert.Empty(t, users.Entries("u1"))
}

func TestDebitSuccessAppendsLedgerEntry(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "1000"},
	})

	entry, ok, err := users.Debit(ctx, "u1", "400", map[string]any{"model": "gpt-5"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "-400", entry.DeltaNano)
	assert.Equal(t, "600", entry.BalanceAfterNano)

	sum, err := users.SumDeltas(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "-400", sum)
}

func TestUnlimitedUserAlwaysDebits(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Enabled: true,
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "0", BalanceUnlimited: true},
	})

	_, ok, err := users.Debit(ctx, "u1", "999999", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdminAdjustRecordsSignedDelta(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUserStore(store.User{
		UserID:  "u1",
		Balance: store.UserBalance{UserID: "u1", BalanceNanoUSD: "100"},
	})

	entry, err := users.AdminAdjust(ctx, "u1", "1000", false, map[string]any{"reason": "topup"})
	require.NoError(t, err)
	assert.Equal(t, "900", entry.DeltaNano)

	bal, err := users.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.BalanceNanoUSD)
}

func TestProviderStoreListEnabledFiltersDisabled(t *testing.T) {
	ctx := context.Background()
	providers := memstore.NewProviderStore(
		store.Provider{ID: "p1", Enabled: true},
		store.Provider{ID: "p2", Enabled: false},
	)

	enabled, err := providers.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "p1", enabled[0].ID)
}

func TestRequestLogPendingThenFinalize(t *testing.T) {
	ctx := context.Background()
	logs := memstore.NewRequestLogStore()

	require.NoError(t, logs.InsertPending(ctx, store.RequestLogRow{RequestID: "r1", UserID: "u1"}))
	row, ok := logs.Get("r1")
	require.True(t, ok)
	assert.Equal(t, store.LogPending, row.Status)

	require.NoError(t, logs.Finalize(ctx, "r1", store.RequestLogRow{RequestID: "r1", UserID: "u1", Status: store.LogSuccess}))
	row, ok = logs.Get("r1")
	require.True(t, ok)
	assert.Equal(t, store.LogSuccess, row.Status)
}

func TestModelMetadataStoreGetPricing(t *testing.T) {
	ctx := context.Background()
	prices := memstore.NewModelMetadataStore(store.ModelPricing{ModelID: "gpt-5", InputRateNano: 10})

	p, ok, err := prices.GetPricing(ctx, "gpt-5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), p.InputRateNano)

	_, ok, err = prices.GetPricing(ctx, "unknown-model")
	require.NoError(t, err)
	assert.False(t, ok)
}
