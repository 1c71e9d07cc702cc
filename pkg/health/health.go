// Package health tracks per-channel health state: passive failure/cooldown
// accounting and the active background prober (spec §4.E).
package health

import (
	"context"
	"time"
)

// ChannelHealth is the in-memory health record for one channel.
type ChannelHealth struct {
	Healthy           bool
	FailureCount      int
	CooldownUntil     *time.Time
	LastSuccessAt     *time.Time
	LastProbeAt       *time.Time
	ProbeSuccessCount int
}

// Store is the external collaborator for channel health state. It has an
// in-memory implementation (single process, default) and a Redis-backed
// implementation (cross-process deployment).
type Store interface {
	// Get returns channelID's health, defaulting to a fresh healthy record
	// if this is the first time channelID is observed.
	Get(ctx context.Context, channelID string) (ChannelHealth, error)

	// RecordSuccess resets channelID to healthy with zero counters and
	// stamps LastSuccessAt (spec §4.E: "Any 2xx success resets counters to
	// healthy immediately").
	RecordSuccess(ctx context.Context, channelID string, at time.Time) error

	// RecordFailure increments channelID's FailureCount; once it reaches
	// threshold the channel is marked unhealthy with a cooldown through
	// at.Add(cooldown) (spec §4.E).
	RecordFailure(ctx context.Context, channelID string, threshold int, cooldown time.Duration, at time.Time) error

	// RecordProbeResult updates channelID's probe counters. On success,
	// ProbeSuccessCount increments and the channel becomes healthy once it
	// reaches successThreshold. On failure, ProbeSuccessCount resets to
	// zero and the cooldown is re-armed (spec §4.E).
	RecordProbeResult(ctx context.Context, channelID string, success bool, successThreshold int, cooldown time.Duration, at time.Time) error
}

// Eligible reports whether h's channel may be attempted right now: healthy,
// or unhealthy with an elapsed cooldown (spec §4.F step 2).
func Eligible(h ChannelHealth, now time.Time) bool {
	if h.Healthy {
		return true
	}
	return h.CooldownUntil != nil && !now.Before(*h.CooldownUntil)
}

// DueForProbe reports whether channelID's unhealthy channel is due for an
// active probe: cooldown elapsed, and the last probe (if any) was at least
// activeInterval ago (spec §4.E).
func DueForProbe(h ChannelHealth, activeInterval time.Duration, now time.Time) bool {
	if h.Healthy {
		return false
	}
	if h.CooldownUntil != nil && now.Before(*h.CooldownUntil) {
		return false
	}
	if h.LastProbeAt == nil {
		return true
	}
	return now.Sub(*h.LastProbeAt) >= activeInterval
}
