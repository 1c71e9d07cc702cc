package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexrelay/gatewaycore/pkg/health"
)

func TestMemStorePassiveFailureMarksUnhealthy(t *testing.T) {
	ctx := context.Background()
	s := health.NewMemStore()
	now := time.Now()

	require.NoError(t, s.RecordFailure(ctx, "ch1", 2, 30*time.Second, now))
	h, err := s.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.True(t, h.Healthy)

	require.NoError(t, s.RecordFailure(ctx, "ch1", 2, 30*time.Second, now))
	h, err = s.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	require.NotNil(t, h.CooldownUntil)
}

func TestMemStoreSuccessResetsCounters(t *testing.T) {
	ctx := context.Background()
	s := health.NewMemStore()
	now := time.Now()

	require.NoError(t, s.RecordFailure(ctx, "ch1", 1, 30*time.Second, now))
	require.NoError(t, s.RecordSuccess(ctx, "ch1", now))

	h, err := s.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.True(t, h.Healthy)
	assert.Equal(t, 0, h.FailureCount)
}

func TestEligibleAfterCooldownElapsed(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	h := health.ChannelHealth{Healthy: false, CooldownUntil: &past}
	assert.True(t, health.Eligible(h, time.Now()))
}

func TestNotEligibleDuringCooldown(t *testing.T) {
	future := time.Now().Add(time.Minute)
	h := health.ChannelHealth{Healthy: false, CooldownUntil: &future}
	assert.False(t, health.Eligible(h, time.Now()))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := health.NewRedisStore(client, "gatewaycore:health:")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordFailure(ctx, "ch1", 1, 30*time.Second, now))
	h, err := store.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.False(t, h.Healthy)

	require.NoError(t, store.RecordProbeResult(ctx, "ch1", true, 1, 30*time.Second, now))
	h, err = store.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.True(t, h.Healthy)
}
