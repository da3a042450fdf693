package memory

import (
	"context"
	"sort"
	"sync"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

// CascadeEventStore is an in-memory implementation of storage.CascadeEventStore.
type CascadeEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CascadeEvent // keyed by name
}

// NewCascadeEventStore creates a new in-memory cascade catalog.
func NewCascadeEventStore() *CascadeEventStore {
	return &CascadeEventStore{
		data: make(map[string]*domain.CascadeEvent),
	}
}

// NewSeededCascadeEventStore creates a catalog pre-populated with the
// curated historical cascades.
func NewSeededCascadeEventStore() *CascadeEventStore {
	s := NewCascadeEventStore()
	for _, c := range domain.KnownCascades() {
		cascadeCopy := c
		s.data[c.Name] = &cascadeCopy
	}
	return s
}

var _ storage.CascadeEventStore = (*CascadeEventStore)(nil)

// Insert adds a cascade. Returns ErrDuplicateKey if the name exists.
func (s *CascadeEventStore) Insert(_ context.Context, c *domain.CascadeEvent) error {
	if c == nil || c.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.Name]; exists {
		return storage.ErrDuplicateKey
	}

	cascadeCopy := *c
	s.data[c.Name] = &cascadeCopy
	return nil
}

// GetByName retrieves a cascade by name. Returns ErrNotFound if not exists.
func (s *CascadeEventStore) GetByName(_ context.Context, name string) (*domain.CascadeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cascadeCopy := *c
	return &cascadeCopy, nil
}

// GetAll retrieves every cascade, ordered by start timestamp ASC.
func (s *CascadeEventStore) GetAll(_ context.Context) ([]*domain.CascadeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CascadeEvent, 0, len(s.data))
	for _, c := range s.data {
		cascadeCopy := *c
		result = append(result, &cascadeCopy)
	}
	sortCascades(result)
	return result, nil
}

// GetOverlapping retrieves cascades whose span intersects [start, end],
// ordered by start ASC.
func (s *CascadeEventStore) GetOverlapping(_ context.Context, start, end float64) ([]*domain.CascadeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CascadeEvent
	for _, c := range s.data {
		if c.Timestamp <= end && c.End() >= start {
			cascadeCopy := *c
			result = append(result, &cascadeCopy)
		}
	}
	sortCascades(result)
	return result, nil
}

func sortCascades(cascades []*domain.CascadeEvent) {
	sort.Slice(cascades, func(i, j int) bool {
		if cascades[i].Timestamp != cascades[j].Timestamp {
			return cascades[i].Timestamp < cascades[j].Timestamp
		}
		return cascades[i].Name < cascades[j].Name
	})
}
