// Package config loads the gateway's process-wide runtime settings: HTTP
// timeouts, health thresholds, unknown-field policy and the reasoning-
// effort model suffix map. Settings are read from YAML with an optional
// .env overlay for local secrets, the way the retrieved corpus's agent
// frameworks (goa-ai, go-deep-agent) bootstrap their own configuration.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// UnknownFieldPolicy controls how ingress fields absent from a wire shape's
// known schema are handled (spec §4.B, §4.C, §6).
type UnknownFieldPolicy string

const (
	PolicyPreserve UnknownFieldPolicy = "preserve"
	PolicyReject   UnknownFieldPolicy = "reject"
	PolicyIgnore   UnknownFieldPolicy = "ignore"
)

// SuffixEffort maps a configured model-suffix (e.g. "-think") to the
// reasoning effort it implies.
type SuffixEffort struct {
	Suffix string `yaml:"suffix"`
	Effort string `yaml:"effort"`
}

// Settings is the full set of runtime-tunable gateway parameters.
type Settings struct {
	// UnknownFieldPolicy is the process-wide ingress policy (spec §6).
	UnknownFieldPolicy UnknownFieldPolicy `yaml:"unknown_field_policy"`

	// RequestTimeout bounds a single upstream HTTP attempt (spec §4.G).
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// PassiveFailureThreshold is the consecutive retryable-failure count
	// that marks a channel unhealthy (spec §4.E).
	PassiveFailureThreshold int `yaml:"passive_failure_threshold"`

	// PassiveCooldown is how long a channel stays ineligible after being
	// marked unhealthy, before it becomes a cooldown-elapsed candidate.
	PassiveCooldown time.Duration `yaml:"passive_cooldown"`

	// ActiveProbeInterval is the minimum spacing between active probes of
	// the same channel (spec §4.E).
	ActiveProbeInterval time.Duration `yaml:"active_probe_interval"`

	// ActiveSuccessThreshold is the consecutive probe-success count that
	// restores a channel to healthy (spec §4.E).
	ActiveSuccessThreshold int `yaml:"active_success_threshold"`

	// ProbeSchedulerInterval is how often the background prober wakes to
	// scan for due probes (spec §4.E: "every >= 1s").
	ProbeSchedulerInterval time.Duration `yaml:"probe_scheduler_interval"`

	// ReasoningSuffixes is the admin-defined suffix->effort map layered on
	// top of the built-in suffixes (spec §4.C).
	ReasoningSuffixes []SuffixEffort `yaml:"reasoning_suffixes"`

	// StreamForwardBufferSize is the bounded SSE forward channel capacity
	// (spec §5, "recommended ~64 events").
	StreamForwardBufferSize int `yaml:"stream_forward_buffer_size"`

	// Brand is the owned_by value used for GET /v1/models (spec §6).
	Brand string `yaml:"brand"`
}

// BuiltinSuffixes are the suffixes spec §4.C names explicitly, before any
// admin-defined additions.
var BuiltinSuffixes = []SuffixEffort{
	{Suffix: "-minimum", Effort: "minimum"},
	{Suffix: "-low", Effort: "low"},
	{Suffix: "-medium", Effort: "medium"},
	{Suffix: "-high", Effort: "high"},
	{Suffix: "-xhigh", Effort: "xhigh"},
	{Suffix: "-max", Effort: "xhigh"},
	{Suffix: "-none", Effort: "none"},
}

// Default returns the Settings a gateway boots with absent any config file,
// per the numeric defaults recorded as Open Question decisions in
// DESIGN.md.
func Default() *Settings {
	return &Settings{
		UnknownFieldPolicy:      PolicyPreserve,
		RequestTimeout:          60 * time.Second,
		PassiveFailureThreshold: 1,
		PassiveCooldown:         30 * time.Second,
		ActiveProbeInterval:     30 * time.Second,
		ActiveSuccessThreshold:  1,
		ProbeSchedulerInterval:  1 * time.Second,
		StreamForwardBufferSize: 64,
		Brand:                   "gatewaycore",
	}
}

// AllSuffixes returns the built-in suffixes followed by s's admin-defined
// ones, longest-suffix-first so a caller doing a linear scan naturally
// implements "longest suffix wins" (spec §4.C).
func (s *Settings) AllSuffixes() []SuffixEffort {
	all := append(append([]SuffixEffort{}, BuiltinSuffixes...), s.ReasoningSuffixes...)
	// Stable sort by descending suffix length.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && len(all[j].Suffix) > len(all[j-1].Suffix); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	return all
}

// LoadYAML reads Settings from a YAML file, starting from Default() so an
// incomplete file still yields sane values for any field it omits.
func LoadYAML(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

// LoadEnvOverlay loads a .env file (if present) into the process
// environment, for local secrets such as provider API keys. A missing file
// is not an error — the overlay is optional.
func LoadEnvOverlay(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Store is a thread-safe holder for live Settings, mutated only by admin
// settings updates (spec §5: "Runtime config: read-write lock; writers are
// admin settings updates only").
type Store struct {
	mu       sync.RWMutex
	settings *Settings
}

// NewStore wraps initial in a Store.
func NewStore(initial *Settings) *Store {
	return &Store{settings: initial}
}

// Get returns the current Settings. The caller must not mutate the
// returned pointer's fields directly; use Update.
func (s *Store) Get() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update atomically replaces the current Settings.
func (s *Store) Update(next *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = next
}
