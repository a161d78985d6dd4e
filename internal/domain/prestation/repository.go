package prestation

import (
	"context"

	"github.com/curanet/nursebill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, act *Prestation) error
	Get(ctx context.Context, id string) (*Prestation, error)
	// Update must reject acts whose invoice has been issued
	Update(ctx context.Context, act *Prestation) error
	// ListByPatientAndDate returns the patient's acts performed on the given
	// calendar date, soft-removed ones included (callers filter via Counted)
	ListByPatientAndDate(ctx context.Context, patientID string, date types.Date) ([]*Prestation, error)
	// ListByInvoice returns the acts attached to an invoice in insertion order
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Prestation, error)
	// ListUninvoicedByPatient returns the patient's unattached acts performed
	// inside [from, to], inclusive
	ListUninvoicedByPatient(ctx context.Context, patientID string, from, to types.Date) ([]*Prestation, error)
}
