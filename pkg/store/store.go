// Package store defines the external-collaborator interfaces the gateway
// core reads and writes: Users, ApiKeys, Providers/Channels, ModelMetadata,
// the billing ledger and request logs. Persistence itself is out of scope
// per spec §1; this package is the seam plus (in ./memstore) an in-memory
// reference implementation used by every other package's tests.
package store

import (
	"context"
	"time"
)

// ProviderKind is the upstream wire shape a Provider speaks.
type ProviderKind string

const (
	KindResponses ProviderKind = "responses"
	KindChat      ProviderKind = "chat"
	KindMessages  ProviderKind = "messages"
	KindGemini    ProviderKind = "gemini"
	KindGrok      ProviderKind = "grok"
)

// ModelEntry is one logical-model mapping inside a Provider.
type ModelEntry struct {
	Redirect   string // upstream model id override; empty means same as logical
	Multiplier float64
}

// Channel is one concrete endpoint inside a Provider.
type Channel struct {
	ID      string
	Name    string
	BaseURL string
	APIKey  string
	Weight  int // >= 0; 0 is treated as 1 for weighted shuffle over non-empty sets
	Enabled bool

	// RateLimitPerSecond, when > 0, bounds outbound requests per second on
	// this channel via a token bucket (SPEC_FULL §4.F).
	RateLimitPerSecond float64
	RateLimitBurst      int
}

// ProbeOverrides customizes active probing for a Provider.
type ProbeOverrides struct {
	Enabled      bool
	ProbeModel   string // overrides the global/provider-default probe model
}

// ResponseTransformRef names a provider-scoped transform rule by id.
type ResponseTransformRef struct {
	TransformID string
}

// Provider is one registered upstream provider.
type Provider struct {
	ID         string
	Name       string
	Kind       ProviderKind
	Enabled    bool
	Priority   int
	Models     map[string]ModelEntry // logical model -> entry
	Channels   []Channel             // ordered
	MaxRetries int                   // -1 = all channels
	Probe      ProbeOverrides
	Transforms []ResponseTransformRef
}

// ProviderStore is the external collaborator for provider/channel config.
type ProviderStore interface {
	// ListEnabled returns all enabled providers, in the store's configured
	// attempt-list order (spec §4.F step 4).
	ListEnabled(ctx context.Context) ([]Provider, error)
	// Get returns a single provider by id.
	Get(ctx context.Context, id string) (Provider, error)
}

// UserBalance is a user's billing state.
type UserBalance struct {
	UserID            string
	BalanceNanoUSD     string // text-persisted signed integer
	BalanceUnlimited  bool
}

// User is an authenticated principal.
type User struct {
	UserID  string
	Enabled bool
	Role    string
	Balance UserBalance
}

// ApiKey is a per-key policy bundle.
type ApiKey struct {
	ID              string
	UserID          string
	HashedKey       string
	Enabled         bool
	ModelLimits     []string // allow-list; empty means unrestricted
	IPWhitelist     []string // empty means unrestricted
	MaxMultiplier   *float64
	Transforms      []string // transform ids
	ExpiresAt       *time.Time
}

// UserStore is the external collaborator for users and balances.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (User, error)
	GetBalance(ctx context.Context, userID string) (UserBalance, error)
}

// ApiKeyStore is the external collaborator for API key policy lookups.
type ApiKeyStore interface {
	GetByHashedKey(ctx context.Context, hashedKey string) (ApiKey, error)
}

// ModelPricing is the nano-USD rate card for one canonical model id.
type ModelPricing struct {
	ModelID          string
	InputRateNano    int64 // nano-USD per token
	OutputRateNano   int64
	CachedRateNano   *int64
	ReasoningRateNano *int64
}

// ModelMetadataStore is the external collaborator for pricing lookups.
type ModelMetadataStore interface {
	// GetPricing returns the pricing row for a canonical model id, and
	// whether one exists at all ("priced", spec §3).
	GetPricing(ctx context.Context, canonicalModelID string) (ModelPricing, bool, error)
}

// LedgerEntryKind distinguishes ledger row types.
type LedgerEntryKind string

const (
	LedgerRequestCharge   LedgerEntryKind = "request_charge"
	LedgerAdminAdjustment LedgerEntryKind = "admin_adjustment"
)

// LedgerEntry is one append-only billing ledger row.
type LedgerEntry struct {
	ID              string
	UserID          string
	Kind            LedgerEntryKind
	DeltaNano       string // signed integer, text-persisted
	BalanceAfterNano string
	Meta            map[string]any
	CreatedAt       time.Time
}

// LedgerStore is the external collaborator for billing debits/adjustments.
// Debit and AdminAdjust are documented as atomic with respect to the
// balance read they act on (spec §4.H step 5; §5's "serialized by a
// transaction per user row").
type LedgerStore interface {
	// Debit attempts to subtract chargeNano from userID's balance. It
	// returns ok=false without mutating state if the balance is
	// insufficient and the user is not unlimited. On success it returns
	// the appended ledger entry.
	Debit(ctx context.Context, userID string, chargeNano string, meta map[string]any) (entry LedgerEntry, ok bool, err error)

	// AdminAdjust sets an absolute balance or toggles unlimited, appending
	// a ledger entry with the signed delta relative to the prior balance.
	AdminAdjust(ctx context.Context, userID string, newBalanceNano string, unlimited bool, meta map[string]any) (LedgerEntry, error)

	// SumDeltas returns the sum of every ledger delta for userID, used by
	// the ledger-conservation property test (spec §8 invariant 5).
	SumDeltas(ctx context.Context, userID string) (string, error)
}

// RequestLogStatus is the lifecycle state of a RequestLogRow.
type RequestLogStatus string

const (
	LogPending RequestLogStatus = "pending"
	LogSuccess RequestLogStatus = "success"
	LogError   RequestLogStatus = "error"
)

// RequestLogRow is one logical request-log record (spec §3, §4.I).
type RequestLogRow struct {
	RequestID   string
	UserID      string
	ApiKeyID    string
	ProviderID  string
	UpstreamModel string
	ChannelID   string
	IsStream    bool

	PromptTokens     int64
	CompletionTokens int64
	CachedTokens     int64
	ReasoningTokens  int64

	ChargeNanoUSD      *string
	BillingBreakdown   map[string]any
	UsageBreakdown     map[string]any

	TriedProvidersJSON string
	ReasoningEffort    string
	DurationMS         int64
	TTFBMS             int64
	RequestIP          string

	Status         RequestLogStatus
	ErrorCode      string
	ErrorMessage   string
	ErrorHTTPStatus int

	RequestKind string // "chat", "active_probe_connectivity", ...
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// RequestLogStore is the external collaborator for the request log.
type RequestLogStore interface {
	// InsertPending inserts a new row in the pending state. It is only
	// called when the client supplied a request id (spec §4.I).
	InsertPending(ctx context.Context, row RequestLogRow) error

	// Finalize overwrites the pending row for requestID with the terminal
	// fields. A second finalize call for the same id is a no-op beyond the
	// first (spec §4.I: "idempotent... overwrites the pending row once").
	Finalize(ctx context.Context, requestID string, row RequestLogRow) error
}
