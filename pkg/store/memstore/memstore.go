// Package memstore is the in-memory reference implementation of the
// pkg/store interfaces, standing in for the persistent collaborator in
// tests across the whole module.
package memstore

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexrelay/gatewaycore/pkg/store"
)

// ProviderStore is an in-memory store.ProviderStore.
type ProviderStore struct {
	mu        sync.RWMutex
	providers []store.Provider // order is the configured attempt-list order
}

// NewProviderStore builds a ProviderStore from an ordered provider list.
func NewProviderStore(providers ...store.Provider) *ProviderStore {
	return &ProviderStore{providers: providers}
}

func (s *ProviderStore) ListEnabled(_ context.Context) ([]store.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProviderStore) Get(_ context.Context, id string) (store.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return store.Provider{}, fmt.Errorf("memstore: provider %q not found", id)
}

// Set replaces the provider at the given index-by-id, or appends it.
func (s *ProviderStore) Set(p store.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.providers {
		if existing.ID == p.ID {
			s.providers[i] = p
			return
		}
	}
	s.providers = append(s.providers, p)
}

// UserStore is an in-memory store.UserStore + store.LedgerStore, since in
// this module the ledger is always scoped to a user balance the same way
// the in-memory reference keeps them together (a real deployment would
// likely split these across tables but still serialize debit per user row,
// per spec §5).
type UserStore struct {
	mu      sync.Mutex
	users   map[string]store.User
	ledgers map[string][]store.LedgerEntry
}

// NewUserStore builds a UserStore seeded with the given users.
func NewUserStore(users ...store.User) *UserStore {
	m := make(map[string]store.User, len(users))
	for _, u := range users {
		m[u.UserID] = u
	}
	return &UserStore{users: m, ledgers: make(map[string][]store.LedgerEntry)}
}

func (s *UserStore) GetUser(_ context.Context, userID string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.User{}, fmt.Errorf("memstore: user %q not found", userID)
	}
	return u, nil
}

func (s *UserStore) GetBalance(_ context.Context, userID string) (store.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.UserBalance{}, fmt.Errorf("memstore: user %q not found", userID)
	}
	return u.Balance, nil
}

func bigFromText(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// Debit implements store.LedgerStore.Debit with a per-user critical
// section standing in for a database row transaction (spec §5).
func (s *UserStore) Debit(_ context.Context, userID string, chargeNano string, meta map[string]any) (store.LedgerEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.LedgerEntry{}, false, fmt.Errorf("memstore: user %q not found", userID)
	}

	charge := bigFromText(chargeNano)
	balance := bigFromText(u.Balance.BalanceNanoUSD)

	if !u.Balance.BalanceUnlimited && balance.Cmp(charge) < 0 {
		return store.LedgerEntry{}, false, nil
	}

	var after *big.Int
	if u.Balance.BalanceUnlimited {
		after = new(big.Int).Sub(balance, charge)
	} else {
		after = new(big.Int).Sub(balance, charge)
	}

	u.Balance.BalanceNanoUSD = after.String()
	s.users[userID] = u

	entry := store.LedgerEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		Kind:             store.LedgerRequestCharge,
		DeltaNano:        new(big.Int).Neg(charge).String(),
		BalanceAfterNano: after.String(),
		Meta:             meta,
		CreatedAt:        time.Now(),
	}
	s.ledgers[userID] = append(s.ledgers[userID], entry)
	return entry, true, nil
}

// AdminAdjust implements store.LedgerStore.AdminAdjust.
func (s *UserStore) AdminAdjust(_ context.Context, userID string, newBalanceNano string, unlimited bool, meta map[string]any) (store.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.LedgerEntry{}, fmt.Errorf("memstore: user %q not found", userID)
	}

	prior := bigFromText(u.Balance.BalanceNanoUSD)
	next := bigFromText(newBalanceNano)
	delta := new(big.Int).Sub(next, prior)

	u.Balance.BalanceNanoUSD = next.String()
	u.Balance.BalanceUnlimited = unlimited
	s.users[userID] = u

	entry := store.LedgerEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		Kind:             store.LedgerAdminAdjustment,
		DeltaNano:        delta.String(),
		BalanceAfterNano: next.String(),
		Meta:             meta,
		CreatedAt:        time.Now(),
	}
	s.ledgers[userID] = append(s.ledgers[userID], entry)
	return entry, nil
}

// SumDeltas implements store.LedgerStore.SumDeltas.
func (s *UserStore) SumDeltas(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := big.NewInt(0)
	for _, e := range s.ledgers[userID] {
		sum.Add(sum, bigFromText(e.DeltaNano))
	}
	return sum.String(), nil
}

// Entries returns a copy of userID's ledger entries, for test assertions.
func (s *UserStore) Entries(userID string) []store.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.LedgerEntry(nil), s.ledgers[userID]...)
}

// ModelMetadataStore is an in-memory store.ModelMetadataStore.
type ModelMetadataStore struct {
	mu     sync.RWMutex
	prices map[string]store.ModelPricing
}

// NewModelMetadataStore builds a ModelMetadataStore from pricing rows.
func NewModelMetadataStore(rows ...store.ModelPricing) *ModelMetadataStore {
	m := make(map[string]store.ModelPricing, len(rows))
	for _, r := range rows {
		m[r.ModelID] = r
	}
	return &ModelMetadataStore{prices: m}
}

func (s *ModelMetadataStore) GetPricing(_ context.Context, canonicalModelID string) (store.ModelPricing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[canonicalModelID]
	return p, ok, nil
}

// RequestLogStore is an in-memory store.RequestLogStore.
type RequestLogStore struct {
	mu   sync.Mutex
	rows map[string]store.RequestLogRow
}

// NewRequestLogStore builds an empty RequestLogStore.
func NewRequestLogStore() *RequestLogStore {
	return &RequestLogStore{rows: make(map[string]store.RequestLogRow)}
}

func (s *RequestLogStore) InsertPending(_ context.Context, row store.RequestLogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.Status = store.LogPending
	s.rows[row.RequestID] = row
	return nil
}

func (s *RequestLogStore) Finalize(_ context.Context, requestID string, row store.RequestLogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[requestID] = row
	return nil
}

// Get returns the row for requestID, for test assertions.
func (s *RequestLogStore) Get(requestID string) (store.RequestLogRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[requestID]
	return r, ok
}
