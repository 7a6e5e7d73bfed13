package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// keepLatest caps the in-memory gallery so a long-lived process does not
// grow without bound.
const keepLatest = 50

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	designs []Design
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{designs: make([]Design, 0)}
}

// SaveDesign prepends a design to the in-memory slice, newest first.
func (s *InMemoryStore) SaveDesign(_ context.Context, input Design) (Design, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}

	s.designs = append([]Design{input}, s.designs...)
	if len(s.designs) > keepLatest {
		s.designs = s.designs[:keepLatest]
	}

	return input, nil
}

// ListDesigns returns a snapshot of stored designs.
func (s *InMemoryStore) ListDesigns(_ context.Context) ([]Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Design, len(s.designs))
	copy(snapshot, s.designs)
	return snapshot, nil
}

// GetDesign returns a design by ID.
func (s *InMemoryStore) GetDesign(_ context.Context, id string) (Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.designs {
		if d.ID == id {
			return d, nil
		}
	}
	return Design{}, ErrNotFound
}

// UpdateConceptURL records where the rendered concept for a design lives.
func (s *InMemoryStore) UpdateConceptURL(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, d := range s.designs {
		if d.ID == id {
			s.designs[idx].ConceptURL = url
			return nil
		}
	}
	return ErrNotFound
}

// DeleteDesign removes a design by ID.
func (s *InMemoryStore) DeleteDesign(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, d := range s.designs {
		if d.ID == id {
			s.designs = append(s.designs[:idx], s.designs[idx+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Close satisfies the Store interface.
func (s *InMemoryStore) Close() {}
