package prestation

import (
	"time"

	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// Prestation is one performed, billable nursing act. It is mutable while
// unattached, frozen once its invoice is issued.
type Prestation struct {
	ID string `db:"id" json:"id"`

	PatientID string `db:"patient_id" json:"patient_id"`

	// CareCodeID references the care code record; Code is denormalized for
	// same-day exclusivity lookups without a join per act
	CareCodeID string `db:"care_code_id" json:"care_code_id"`
	Code       string `db:"code" json:"code"`

	EmployeeID string `db:"employee_id" json:"employee_id"`

	// At is the exact timestamp the act was performed
	At time.Time `db:"performed_at" json:"performed_at"`

	// AtHome marks acts performed at the patient's home, which are limited
	// per invoice
	AtHome bool `db:"at_home" json:"at_home"`

	// InvoiceID is empty until the act is attached to an invoice
	InvoiceID string `db:"invoice_id" json:"invoice_id,omitempty"`

	types.BaseModel
}

// Validate checks structural invariants on the act
func (p *Prestation) Validate() error {
	if p.PatientID == "" {
		return ierr.NewError("patient id is required").
			WithHint("Prestation must reference a patient").
			Mark(ierr.ErrValidation)
	}
	if p.CareCodeID == "" && p.Code == "" {
		return ierr.NewError("care code is required").
			WithHint("Prestation must reference a care code").
			Mark(ierr.ErrValidation)
	}
	if p.At.IsZero() {
		return ierr.NewError("performed timestamp is required").
			WithHint("Prestation must record when the act was performed").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Date returns the calendar date the act was performed on
func (p *Prestation) Date() types.Date {
	return types.DateOf(p.At)
}

// Invoiced reports whether the act is attached to an invoice
func (p *Prestation) Invoiced() bool {
	return p.InvoiceID != ""
}

// Counted reports whether the act counts toward invoice capacity.
// Soft-removed acts keep their row but free their slot.
func (p *Prestation) Counted() bool {
	return p.Status != types.StatusDeleted
}
