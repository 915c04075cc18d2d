package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// Store implements ports.DraftStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Draft
	mu   sync.RWMutex
}

// NewStore creates a new in-memory draft store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Draft),
	}
}

// Save persists the draft in memory.
func (s *Store) Save(ctx context.Context, draft *domain.Draft) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := cloneDraft(draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[draft.Key] = copied
	return nil
}

// Load retrieves the draft from memory.
func (s *Store) Load(ctx context.Context, key string) (*domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	draft, ok := s.data[key]
	if !ok {
		return nil, domain.ErrDraftNotFound
	}

	// Copy on read so callers can't mutate store state through the pointer
	return cloneDraft(draft), nil
}

// Delete removes the draft.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the stored draft keys in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func cloneDraft(d *domain.Draft) *domain.Draft {
	out := *d
	out.Graph = d.Graph.Clone()
	out.Snapshot = d.Snapshot.Clone()
	return &out
}
