package routing_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
	"github.com/nexrelay/gatewaycore/pkg/health"
	"github.com/nexrelay/gatewaycore/pkg/routing"
	"github.com/nexrelay/gatewaycore/pkg/store"
	"github.com/nexrelay/gatewaycore/pkg/store/memstore"
	"github.com/nexrelay/gatewaycore/pkg/upstream"
)

func testProvider(id string, maxRetries int, channels ...store.Channel) store.Provider {
	return store.Provider{
		ID:         id,
		Name:       id,
		Kind:       store.KindChat,
		Enabled:    true,
		MaxRetries: maxRetries,
		Models: map[string]store.ModelEntry{
			"gpt-4o": {Multiplier: 1.0},
		},
		Channels: channels,
	}
}

func TestBuildAttemptListFiltersByModelAndCeiling(t *testing.T) {
	ctx := context.Background()
	ps := memstore.NewProviderStore(testProvider("p1", -1, store.Channel{ID: "c1", Enabled: true, Weight: 1}))
	hs := health.NewMemStore()

	attempts, err := routing.BuildAttemptList(ctx, ps, hs, nil, routing.BuildOptions{
		Model:      "does-not-exist",
		Now:        time.Now(),
		Rand:       rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestBuildAttemptListExcludesUnhealthyChannelsUntilCooldownElapses(t *testing.T) {
	ctx := context.Background()
	ps := memstore.NewProviderStore(testProvider("p1", -1,
		store.Channel{ID: "c1", Enabled: true, Weight: 1},
		store.Channel{ID: "c2", Enabled: true, Weight: 1},
	))
	hs := health.NewMemStore()
	now := time.Now()
	require.NoError(t, hs.RecordFailure(ctx, "c1", 1, time.Hour, now))

	attempts, err := routing.BuildAttemptList(ctx, ps, hs, nil, routing.BuildOptions{
		Model: "gpt-4o",
		Now:   now,
		Rand:  rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "c2", attempts[0].Channel.ID)
}

func TestBuildAttemptListCapsAtMaxRetriesPlusOne(t *testing.T) {
	ctx := context.Background()
	ps := memstore.NewProviderStore(testProvider("p1", 1,
		store.Channel{ID: "c1", Enabled: true, Weight: 1},
		store.Channel{ID: "c2", Enabled: true, Weight: 1},
		store.Channel{ID: "c3", Enabled: true, Weight: 1},
	))
	hs := health.NewMemStore()

	attempts, err := routing.BuildAttemptList(ctx, ps, hs, nil, routing.BuildOptions{
		Model: "gpt-4o",
		Now:   time.Now(),
		Rand:  rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestBuildAttemptListDeterministicForSameSeed(t *testing.T) {
	ctx := context.Background()
	channels := []store.Channel{
		{ID: "c1", Enabled: true, Weight: 1},
		{ID: "c2", Enabled: true, Weight: 5},
		{ID: "c3", Enabled: true, Weight: 1},
	}
	build := func() []routing.Attempt {
		ps := memstore.NewProviderStore(testProvider("p1", -1, channels...))
		hs := health.NewMemStore()
		attempts, err := routing.BuildAttemptList(ctx, ps, hs, nil, routing.BuildOptions{
			Model: "gpt-4o",
			Now:   time.Now(),
			Rand:  rand.New(rand.NewSource(42)),
		})
		require.NoError(t, err)
		return attempts
	}
	a, b := build(), build()
	require.Len(t, a, len(b))
	for i := range a {
		assert.Equal(t, a[i].Channel.ID, b[i].Channel.ID)
	}
}

func TestExecuteReturnsOnFirstSuccess(t *testing.T) {
	ctx := context.Background()
	hs := health.NewMemStore()
	attempts := []routing.Attempt{
		{Provider: testProvider("p1", -1), Channel: store.Channel{ID: "c1"}},
	}
	invoke := func(_ context.Context, _ upstream.Target, _ string) upstream.Outcome {
		return upstream.Outcome{Value: map[string]any{"ok": true}, StatusCode: 200}
	}
	result := routing.Execute(ctx, attempts, "gpt-4o", fakeBuildTarget, invoke, hs, routing.HealthConfig{FailureThreshold: 1, Cooldown: time.Second})
	assert.False(t, result.Exhausted)
	assert.Nil(t, result.Err)
	assert.Equal(t, "c1", result.Attempt.Channel.ID)
}

func TestExecuteTerminatesImmediatelyOnNonRetryableError(t *testing.T) {
	ctx := context.Background()
	hs := health.NewMemStore()
	attempts := []routing.Attempt{
		{Provider: testProvider("p1", -1), Channel: store.Channel{ID: "c1"}},
		{Provider: testProvider("p1", -1), Channel: store.Channel{ID: "c2"}},
	}
	invoke := func(_ context.Context, _ upstream.Target, _ string) upstream.Outcome {
		return upstream.Outcome{StatusCode: 401, HTTPErr: gatewayerrors.New(gatewayerrors.ClassifyStatus(401), "unauthorized")}
	}
	result := routing.Execute(ctx, attempts, "gpt-4o", fakeBuildTarget, invoke, hs, routing.HealthConfig{FailureThreshold: 1, Cooldown: time.Second})
	assert.False(t, result.Exhausted)
	require.Len(t, result.Tried, 0)
	assert.Equal(t, "c1", result.Attempt.Channel.ID)
}

func TestExecuteRetriesThenExhausts(t *testing.T) {
	ctx := context.Background()
	hs := health.NewMemStore()
	attempts := []routing.Attempt{
		{Provider: testProvider("p1", -1), Channel: store.Channel{ID: "c1"}},
		{Provider: testProvider("p1", -1), Channel: store.Channel{ID: "c2"}},
	}
	invoke := func(_ context.Context, _ upstream.Target, _ string) upstream.Outcome {
		return upstream.Outcome{StatusCode: 503, HTTPErr: gatewayerrors.New(gatewayerrors.ClassifyStatus(503), "service unavailable")}
	}
	result := routing.Execute(ctx, attempts, "gpt-4o", fakeBuildTarget, invoke, hs, routing.HealthConfig{FailureThreshold: 1, Cooldown: time.Second})
	assert.True(t, result.Exhausted)
	require.Len(t, result.Tried, 2)
	assert.Contains(t, result.Err.Error(), "gpt-4o")
}

func fakeBuildTarget(a routing.Attempt) (upstream.Target, string) {
	target := upstream.Target{Kind: store.KindChat, BaseURL: "http://example", APIKey: "k", Body: map[string]any{}}
	return target, target.Path()
}
