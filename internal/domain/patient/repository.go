package patient

import (
	"context"
)

type Repository interface {
	GetFlags(ctx context.Context, patientID string) (*Flags, error)
	SetFlags(ctx context.Context, flags *Flags) error
	CreateHospitalization(ctx context.Context, period *HospitalizationPeriod) error
	ListHospitalizations(ctx context.Context, patientID string) ([]*HospitalizationPeriod, error)
}
