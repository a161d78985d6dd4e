package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/curanet/nursebill/internal/domain/invoice"
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	items    map[string]*invoice.Item
	byNumber map[string]string
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		items:    make(map[string]*invoice.Item),
		byNumber: make(map[string]string),
	}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, item *invoice.Item) error {
	if item == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return ierr.NewError("invoice already exists").Mark(ierr.ErrAlreadyExists)
	}
	// invoice numbers are unique
	if _, exists := s.byNumber[item.InvoiceNumber]; exists {
		return ierr.NewError("invoice number already used").
			WithHintf("Invoice number %s already exists", item.InvoiceNumber).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[item.ID] = item
	s.byNumber[item.InvoiceNumber] = item.ID
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return item, nil
	}
	return nil, ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, item *invoice.Item) error {
	if item == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; !exists {
		return ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}

	s.items[item.ID] = item
	return nil
}

func (s *InMemoryInvoiceStore) ListByDateRange(ctx context.Context, start, end types.Date) ([]*invoice.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*invoice.Item
	for _, item := range s.items {
		if item.InvoiceDate.Between(start, &end) {
			result = append(result, item)
		}
	}
	sortItems(result)
	return result, nil
}

func (s *InMemoryInvoiceStore) ListByBatch(ctx context.Context, batchID string) ([]*invoice.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*invoice.Item
	for _, item := range s.items {
		if item.BatchID == batchID {
			result = append(result, item)
		}
	}
	sortItems(result)
	return result, nil
}

func (s *InMemoryInvoiceStore) isIssued(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	return exists && item.Issued()
}

func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*invoice.Item)
	s.byNumber = make(map[string]string)
}

func sortItems(items []*invoice.Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
}

// InMemoryBatchStore implements invoice.BatchRepository
type InMemoryBatchStore struct {
	mu      sync.RWMutex
	batches map[string]*invoice.Batch
}

func NewInMemoryBatchStore() *InMemoryBatchStore {
	return &InMemoryBatchStore{
		batches: make(map[string]*invoice.Batch),
	}
}

func (s *InMemoryBatchStore) Create(ctx context.Context, b *invoice.Batch) error {
	if b == nil {
		return ierr.NewError("batch cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[b.ID]; exists {
		return ierr.NewError("batch already exists").Mark(ierr.ErrAlreadyExists)
	}

	s.batches[b.ID] = b
	return nil
}

func (s *InMemoryBatchStore) Get(ctx context.Context, id string) (*invoice.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, exists := s.batches[id]; exists {
		return b, nil
	}
	return nil, ierr.NewError("batch not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryBatchStore) Update(ctx context.Context, b *invoice.Batch) error {
	if b == nil {
		return ierr.NewError("batch cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[b.ID]; !exists {
		return ierr.NewError("batch not found").Mark(ierr.ErrNotFound)
	}

	s.batches[b.ID] = b
	return nil
}

func (s *InMemoryBatchStore) List(ctx context.Context) ([]*invoice.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start.Time)
	})
	return result, nil
}

func (s *InMemoryBatchStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = make(map[string]*invoice.Batch)
}
