package routing

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/nexrelay/gatewaycore/pkg/store"
)

// Limiters is a RateLimiters implementation backed by one
// golang.org/x/time/rate.Limiter per channel, lazily created on first use.
// A channel whose bucket has no tokens available is treated as transiently
// ineligible for the current attempt build, the same way an unhealthy
// channel is, without tripping passive failure accounting.
type Limiters struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
}

// NewLimiters builds an empty registry.
func NewLimiters() *Limiters {
	return &Limiters{buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether channel currently has a token available, consuming
// it if so. Channels with no configured rate limit are always allowed.
func (l *Limiters) Allow(channel store.Channel) bool {
	if channel.RateLimitPerSecond <= 0 {
		return true
	}
	return l.bucketFor(channel).Allow()
}

func (l *Limiters) bucketFor(channel store.Channel) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[channel.ID]
	if !ok {
		burst := channel.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		b = rate.NewLimiter(rate.Limit(channel.RateLimitPerSecond), burst)
		l.buckets[channel.ID] = b
	}
	return b
}
