package health

import (
	"context"
	"time"

	"github.com/nexrelay/gatewaycore/pkg/store"
)

// ProbeFunc sends a minimal completion request to providerID's probeModel
// over channelID and reports whether it succeeded. It is supplied by the
// caller (pkg/upstream + pkg/requestlog) rather than imported here, so this
// package never depends on the HTTP/transport layer (spec §4.E: "send a
// minimal completion request... log as a request-log row with
// request_kind=active_probe_connectivity").
type ProbeFunc func(ctx context.Context, provider store.Provider, channelID string, probeModel string) bool

// Prober is the background active-probing loop.
type Prober struct {
	Providers        store.ProviderStore
	Store            Store
	Probe            ProbeFunc
	ActiveInterval   time.Duration
	SuccessThreshold int
	Cooldown         time.Duration
	SchedulerTick    time.Duration
}

// Run blocks, scanning for due probes every SchedulerTick until ctx is
// canceled (spec §4.E: "every >= 1s, iterate enabled providers").
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.SchedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scanOnce(ctx)
		}
	}
}

func (p *Prober) scanOnce(ctx context.Context) {
	providers, err := p.Providers.ListEnabled(ctx)
	if err != nil {
		return
	}
	now := time.Now()

	for _, provider := range providers {
		if !provider.Probe.Enabled {
			continue
		}
		probeModel := resolveProbeModel(provider)
		if probeModel == "" {
			continue
		}

		for _, ch := range provider.Channels {
			h, err := p.Store.Get(ctx, ch.ID)
			if err != nil {
				continue
			}
			if !DueForProbe(h, p.ActiveInterval, now) {
				continue
			}

			success := p.Probe(ctx, provider, ch.ID, probeModel)
			_ = p.Store.RecordProbeResult(ctx, ch.ID, success, p.SuccessThreshold, p.Cooldown, time.Now())
		}
	}
}

// resolveProbeModel returns the provider's preferred probe model: an
// override, else the first configured model, in that order (spec §4.E:
// "override -> global -> first model in the provider"; the "global"
// fallback is the caller's responsibility since it isn't provider-scoped
// state).
func resolveProbeModel(provider store.Provider) string {
	if provider.Probe.ProbeModel != "" {
		return provider.Probe.ProbeModel
	}
	for logical := range provider.Models {
		return logical
	}
	return ""
}
