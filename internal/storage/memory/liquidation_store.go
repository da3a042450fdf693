// Package memory provides in-memory store implementations, used by tests
// and by backtests that run entirely from loaded files.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

// LiquidationStore is an in-memory implementation of storage.LiquidationStore.
type LiquidationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LiquidationEvent // keyed by composite key
}

// NewLiquidationStore creates a new in-memory liquidation store.
func NewLiquidationStore() *LiquidationStore {
	return &LiquidationStore{
		data: make(map[string]*domain.LiquidationEvent),
	}
}

var _ storage.LiquidationStore = (*LiquidationStore)(nil)

// liquidationKey generates the dedup key for an event.
func liquidationKey(e *domain.LiquidationEvent) string {
	return fmt.Sprintf("%s|%s|%.6f|%.2f", e.Exchange, e.Symbol, e.Timestamp, e.USDValue)
}

// Insert adds a single liquidation. Returns ErrDuplicateKey if the event was
// already recorded.
func (s *LiquidationStore) Insert(_ context.Context, e *domain.LiquidationEvent) error {
	if e == nil || e.Symbol == "" {
		return storage.ErrInvalidInput
	}

	key := liquidationKey(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	eventCopy := *e
	s.data[key] = &eventCopy
	return nil
}

// InsertBulk adds multiple liquidations atomically. Fails the entire batch on
// any duplicate, including intra-batch duplicates.
func (s *LiquidationStore) InsertBulk(_ context.Context, events []*domain.LiquidationEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := liquidationKey(e)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		eventCopy := *e
		s.data[liquidationKey(e)] = &eventCopy
	}

	return nil
}

// GetBySymbol retrieves all liquidations for a symbol, ordered by timestamp ASC.
func (s *LiquidationStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.LiquidationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LiquidationEvent
	for _, e := range s.data {
		if e.Symbol == symbol {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sortLiquidations(result)
	return result, nil
}

// GetByTimeRange retrieves liquidations for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *LiquidationStore) GetByTimeRange(_ context.Context, symbol string, start, end float64) ([]*domain.LiquidationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LiquidationEvent
	for _, e := range s.data {
		if e.Symbol == symbol && e.Timestamp >= start && e.Timestamp <= end {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sortLiquidations(result)
	return result, nil
}

// Symbols lists all symbols with at least one recorded liquidation.
func (s *LiquidationStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.data {
		seen[e.Symbol] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func sortLiquidations(events []*domain.LiquidationEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Exchange < events[j].Exchange
	})
}
