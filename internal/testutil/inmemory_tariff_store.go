package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/curanet/nursebill/internal/domain/tariff"
	ierr "github.com/curanet/nursebill/internal/errors"
)

// InMemoryTariffStore implements tariff.Repository
type InMemoryTariffStore struct {
	mu         sync.RWMutex
	validities map[string]*tariff.ValidityDate
}

func NewInMemoryTariffStore() *InMemoryTariffStore {
	return &InMemoryTariffStore{
		validities: make(map[string]*tariff.ValidityDate),
	}
}

func (s *InMemoryTariffStore) Create(ctx context.Context, v *tariff.ValidityDate) error {
	if v == nil {
		return ierr.NewError("validity interval cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.validities[v.ID]; exists {
		return ierr.NewError("validity interval already exists").Mark(ierr.ErrAlreadyExists)
	}

	s.validities[v.ID] = v
	return nil
}

func (s *InMemoryTariffStore) Get(ctx context.Context, id string) (*tariff.ValidityDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, exists := s.validities[id]; exists {
		return v, nil
	}
	return nil, ierr.NewError("validity interval not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryTariffStore) ListByCareCode(ctx context.Context, careCodeID string) ([]*tariff.ValidityDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*tariff.ValidityDate
	for _, v := range s.validities {
		if v.CareCodeID == careCodeID {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start.Time)
	})
	return result, nil
}

func (s *InMemoryTariffStore) Update(ctx context.Context, v *tariff.ValidityDate) error {
	if v == nil {
		return ierr.NewError("validity interval cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.validities[v.ID]; !exists {
		return ierr.NewError("validity interval not found").Mark(ierr.ErrNotFound)
	}

	s.validities[v.ID] = v
	return nil
}

func (s *InMemoryTariffStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.validities[id]; !exists {
		return ierr.NewError("validity interval not found").Mark(ierr.ErrNotFound)
	}

	delete(s.validities, id)
	return nil
}

func (s *InMemoryTariffStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.validities = make(map[string]*tariff.ValidityDate)
}
