// Package routing builds and executes the ordered attempt list for a URP
// request: provider/channel enumeration, weighted shuffle, and the
// retry/fallback execution loop (spec §4.F).
package routing

import (
	"context"
	"math/rand"
	"time"

	"github.com/nexrelay/gatewaycore/pkg/health"
	"github.com/nexrelay/gatewaycore/pkg/store"
)

// Attempt is one entry in the ordered attempt list.
type Attempt struct {
	Provider store.Provider
	Channel  store.Channel
}

// RateLimiters looks up (and lazily creates) the token-bucket limiter for a
// channel. It is injected so pkg/routing doesn't own limiter lifetime.
type RateLimiters interface {
	Allow(channel store.Channel) bool
}

// BuildOptions parameters the attempt-list build.
type BuildOptions struct {
	Model            string
	EffectiveCeiling float64
	HasCeiling       bool
	Now              time.Time
	Rand             *rand.Rand // must be non-nil; callers seed explicitly for determinism (spec §8 invariant 3)
}

// BuildAttemptList enumerates eligible providers/channels for a request and
// returns the ordered attempt list (spec §4.F steps 1-4).
func BuildAttemptList(ctx context.Context, providers store.ProviderStore, healthStore health.Store, limiters RateLimiters, opts BuildOptions) ([]Attempt, error) {
	all, err := providers.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var out []Attempt
	for _, provider := range all {
		entry, ok := provider.Models[opts.Model]
		if !ok {
			continue
		}
		if opts.HasCeiling && entry.Multiplier > opts.EffectiveCeiling {
			continue
		}

		eligible := eligibleChannels(ctx, provider, healthStore, limiters, opts.Now)
		shuffled := weightedShuffle(eligible, opts.Rand)

		limit := len(shuffled)
		if provider.MaxRetries >= 0 && provider.MaxRetries+1 < limit {
			limit = provider.MaxRetries + 1
		}
		for _, ch := range shuffled[:limit] {
			out = append(out, Attempt{Provider: provider, Channel: ch})
		}
	}
	return out, nil
}

func eligibleChannels(ctx context.Context, provider store.Provider, healthStore health.Store, limiters RateLimiters, now time.Time) []store.Channel {
	var out []store.Channel
	for _, ch := range provider.Channels {
		if !ch.Enabled {
			continue
		}
		h, err := healthStore.Get(ctx, ch.ID)
		if err != nil {
			continue
		}
		if !health.Eligible(h, now) {
			continue
		}
		if limiters != nil && !limiters.Allow(ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// weightedShuffle repeatedly samples one channel with probability
// proportional to its weight (weight 0 treated as 1 for a non-empty set),
// removes it, and repeats — spec §4.F step 3.
func weightedShuffle(channels []store.Channel, rng *rand.Rand) []store.Channel {
	remaining := append([]store.Channel(nil), channels...)
	out := make([]store.Channel, 0, len(remaining))

	for len(remaining) > 0 {
		total := 0
		weights := make([]int, len(remaining))
		for i, ch := range remaining {
			w := ch.Weight
			if w <= 0 {
				w = 1
			}
			weights[i] = w
			total += w
		}

		pick := rng.Intn(total)
		idx := 0
		cum := 0
		for i, w := range weights {
			cum += w
			if pick < cum {
				idx = i
				break
			}
		}

		out = append(out, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out
}
