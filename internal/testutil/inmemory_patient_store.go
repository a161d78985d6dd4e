package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/curanet/nursebill/internal/domain/patient"
	ierr "github.com/curanet/nursebill/internal/errors"
)

// InMemoryPatientStore implements patient.Repository
type InMemoryPatientStore struct {
	mu               sync.RWMutex
	flags            map[string]*patient.Flags
	hospitalizations map[string][]*patient.HospitalizationPeriod
}

func NewInMemoryPatientStore() *InMemoryPatientStore {
	return &InMemoryPatientStore{
		flags:            make(map[string]*patient.Flags),
		hospitalizations: make(map[string][]*patient.HospitalizationPeriod),
	}
}

func (s *InMemoryPatientStore) GetFlags(ctx context.Context, patientID string) (*patient.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, exists := s.flags[patientID]; exists {
		return f, nil
	}
	return nil, ierr.NewError("patient not found").
		WithHintf("Unknown patient %s", patientID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPatientStore) SetFlags(ctx context.Context, f *patient.Flags) error {
	if f == nil {
		return ierr.NewError("patient flags cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[f.PatientID] = f
	return nil
}

func (s *InMemoryPatientStore) CreateHospitalization(ctx context.Context, p *patient.HospitalizationPeriod) error {
	if p == nil {
		return ierr.NewError("hospitalization period cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// insertion-time overlap enforcement, same as the real store
	existing := patient.NewHospitalizations(p.PatientID, s.hospitalizations[p.PatientID])
	if err := existing.Add(p); err != nil {
		return err
	}

	s.hospitalizations[p.PatientID] = existing.Periods()
	return nil
}

func (s *InMemoryPatientStore) ListHospitalizations(ctx context.Context, patientID string) ([]*patient.HospitalizationPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods := s.hospitalizations[patientID]
	result := make([]*patient.HospitalizationPeriod, len(periods))
	copy(result, periods)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start.Time)
	})
	return result, nil
}

func (s *InMemoryPatientStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags = make(map[string]*patient.Flags)
	s.hospitalizations = make(map[string][]*patient.HospitalizationPeriod)
}
