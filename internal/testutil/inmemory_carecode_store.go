package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/curanet/nursebill/internal/domain/carecode"
	ierr "github.com/curanet/nursebill/internal/errors"
)

// InMemoryCareCodeStore implements carecode.Repository
type InMemoryCareCodeStore struct {
	mu     sync.RWMutex
	codes  map[string]*carecode.CareCode
	byCode map[string]string
}

func NewInMemoryCareCodeStore() *InMemoryCareCodeStore {
	return &InMemoryCareCodeStore{
		codes:  make(map[string]*carecode.CareCode),
		byCode: make(map[string]string),
	}
}

func (s *InMemoryCareCodeStore) Create(ctx context.Context, c *carecode.CareCode) error {
	if c == nil {
		return ierr.NewError("care code cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[c.ID]; exists {
		return ierr.NewError("care code already exists").Mark(ierr.ErrAlreadyExists)
	}
	// code uniqueness is an invariant of the catalog
	if _, exists := s.byCode[c.Code]; exists {
		return ierr.NewError("care code is already registered").
			WithHintf("Code %s already exists", c.Code).
			Mark(ierr.ErrAlreadyExists)
	}

	s.codes[c.ID] = c
	s.byCode[c.Code] = c.ID
	return nil
}

func (s *InMemoryCareCodeStore) Get(ctx context.Context, id string) (*carecode.CareCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, exists := s.codes[id]; exists {
		return c, nil
	}
	return nil, ierr.NewError("care code not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryCareCodeStore) GetByCode(ctx context.Context, code string) (*carecode.CareCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, exists := s.byCode[code]; exists {
		return s.codes[id], nil
	}
	return nil, ierr.NewError("care code not found").
		WithHintf("Unknown code %s", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCareCodeStore) List(ctx context.Context) ([]*carecode.CareCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*carecode.CareCode, 0, len(s.codes))
	for _, c := range s.codes {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result, nil
}

func (s *InMemoryCareCodeStore) Update(ctx context.Context, c *carecode.CareCode) error {
	if c == nil {
		return ierr.NewError("care code cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[c.ID]; !exists {
		return ierr.NewError("care code not found").Mark(ierr.ErrNotFound)
	}

	s.codes[c.ID] = c
	s.byCode[c.Code] = c.ID
	return nil
}

func (s *InMemoryCareCodeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes = make(map[string]*carecode.CareCode)
	s.byCode = make(map[string]string)
}
