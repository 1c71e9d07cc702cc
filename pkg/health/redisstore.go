package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the cross-process Store implementation, for the multiple
// gateway replicas deployment spec.md's design notes flag as needing "an
// external store" for shared channel health.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing *redis.Client. keyPrefix namespaces the
// health keys (e.g. "gatewaycore:health:") so they can share a Redis
// instance with other state.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(channelID string) string {
	return s.keyPrefix + channelID
}

func (s *RedisStore) Get(ctx context.Context, channelID string) (ChannelHealth, error) {
	raw, err := s.client.Get(ctx, s.key(channelID)).Bytes()
	if err == redis.Nil {
		return ChannelHealth{Healthy: true}, nil
	}
	if err != nil {
		return ChannelHealth{}, fmt.Errorf("health: redis get %s: %w", channelID, err)
	}
	var h ChannelHealth
	if err := json.Unmarshal(raw, &h); err != nil {
		return ChannelHealth{}, fmt.Errorf("health: decode %s: %w", channelID, err)
	}
	return h, nil
}

func (s *RedisStore) save(ctx context.Context, channelID string, h ChannelHealth) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("health: encode %s: %w", channelID, err)
	}
	if err := s.client.Set(ctx, s.key(channelID), raw, 0).Err(); err != nil {
		return fmt.Errorf("health: redis set %s: %w", channelID, err)
	}
	return nil
}

func (s *RedisStore) RecordSuccess(ctx context.Context, channelID string, at time.Time) error {
	return s.save(ctx, channelID, ChannelHealth{Healthy: true, LastSuccessAt: &at})
}

func (s *RedisStore) RecordFailure(ctx context.Context, channelID string, threshold int, cooldown time.Duration, at time.Time) error {
	h, err := s.Get(ctx, channelID)
	if err != nil {
		return err
	}
	h.FailureCount++
	if h.FailureCount >= threshold {
		h.Healthy = false
		until := at.Add(cooldown)
		h.CooldownUntil = &until
	}
	return s.save(ctx, channelID, h)
}

func (s *RedisStore) RecordProbeResult(ctx context.Context, channelID string, success bool, successThreshold int, cooldown time.Duration, at time.Time) error {
	h, err := s.Get(ctx, channelID)
	if err != nil {
		return err
	}
	h.LastProbeAt = &at
	if success {
		h.ProbeSuccessCount++
		if h.ProbeSuccessCount >= successThreshold {
			h.Healthy = true
			h.FailureCount = 0
			h.CooldownUntil = nil
			h.ProbeSuccessCount = 0
		}
	} else {
		h.ProbeSuccessCount = 0
		until := at.Add(cooldown)
		h.CooldownUntil = &until
	}
	return s.save(ctx, channelID, h)
}
