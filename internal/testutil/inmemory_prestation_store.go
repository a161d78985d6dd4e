package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/curanet/nursebill/internal/domain/prestation"
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// InMemoryPrestationStore implements prestation.Repository. When wired to
// an invoice store it refuses to mutate acts attached to issued invoices,
// mirroring the freeze the real persistence layer enforces.
type InMemoryPrestationStore struct {
	mu       sync.RWMutex
	acts     map[string]*prestation.Prestation
	order    []string
	invoices *InMemoryInvoiceStore
}

func NewInMemoryPrestationStore(invoices *InMemoryInvoiceStore) *InMemoryPrestationStore {
	return &InMemoryPrestationStore{
		acts:     make(map[string]*prestation.Prestation),
		invoices: invoices,
	}
}

func (s *InMemoryPrestationStore) Create(ctx context.Context, act *prestation.Prestation) error {
	if act == nil {
		return ierr.NewError("prestation cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.acts[act.ID]; exists {
		return ierr.NewError("prestation already exists").Mark(ierr.ErrAlreadyExists)
	}

	s.acts[act.ID] = act
	s.order = append(s.order, act.ID)
	return nil
}

func (s *InMemoryPrestationStore) Get(ctx context.Context, id string) (*prestation.Prestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if act, exists := s.acts[id]; exists {
		return act, nil
	}
	return nil, ierr.NewError("prestation not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryPrestationStore) Update(ctx context.Context, act *prestation.Prestation) error {
	if act == nil {
		return ierr.NewError("prestation cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.acts[act.ID]
	if !exists {
		return ierr.NewError("prestation not found").Mark(ierr.ErrNotFound)
	}

	if existing.Invoiced() && s.invoices != nil && s.invoices.isIssued(existing.InvoiceID) {
		return ierr.NewError("prestation is frozen").
			WithHint("Acts on an issued invoice cannot be modified").
			Mark(ierr.ErrInvalidOperation)
	}

	s.acts[act.ID] = act
	return nil
}

func (s *InMemoryPrestationStore) ListByPatientAndDate(ctx context.Context, patientID string, date types.Date) ([]*prestation.Prestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*prestation.Prestation
	for _, id := range s.order {
		act := s.acts[id]
		if act.PatientID == patientID && act.Date().Equal(date.Time) {
			result = append(result, act)
		}
	}
	return result, nil
}

func (s *InMemoryPrestationStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*prestation.Prestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*prestation.Prestation
	for _, id := range s.order {
		act := s.acts[id]
		if act.InvoiceID == invoiceID {
			result = append(result, act)
		}
	}
	return result, nil
}

func (s *InMemoryPrestationStore) ListUninvoicedByPatient(ctx context.Context, patientID string, from, to types.Date) ([]*prestation.Prestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*prestation.Prestation
	for _, id := range s.order {
		act := s.acts[id]
		if act.PatientID != patientID || act.Invoiced() || !act.Counted() {
			continue
		}
		if act.Date().Between(from, &to) {
			result = append(result, act)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].At.Before(result[j].At)
	})
	return result, nil
}

func (s *InMemoryPrestationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.acts = make(map[string]*prestation.Prestation)
	s.order = nil
}
