package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/curanet/nursebill/internal/domain/exclusivity"
	ierr "github.com/curanet/nursebill/internal/errors"
)

// InMemoryExclusivityStore implements exclusivity.Repository
type InMemoryExclusivityStore struct {
	mu     sync.RWMutex
	groups map[string]*exclusivity.Group
}

func NewInMemoryExclusivityStore() *InMemoryExclusivityStore {
	return &InMemoryExclusivityStore{
		groups: make(map[string]*exclusivity.Group),
	}
}

func (s *InMemoryExclusivityStore) Create(ctx context.Context, g *exclusivity.Group) error {
	if g == nil {
		return ierr.NewError("exclusivity group cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[g.ID]; exists {
		return ierr.NewError("exclusivity group already exists").Mark(ierr.ErrAlreadyExists)
	}

	s.groups[g.ID] = g
	return nil
}

func (s *InMemoryExclusivityStore) Get(ctx context.Context, id string) (*exclusivity.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, exists := s.groups[id]; exists {
		return g, nil
	}
	return nil, ierr.NewError("exclusivity group not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryExclusivityStore) List(ctx context.Context) ([]*exclusivity.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*exclusivity.Group, 0, len(s.groups))
	for _, g := range s.groups {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *InMemoryExclusivityStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; !exists {
		return ierr.NewError("exclusivity group not found").Mark(ierr.ErrNotFound)
	}

	delete(s.groups, id)
	return nil
}

func (s *InMemoryExclusivityStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = make(map[string]*exclusivity.Group)
}
