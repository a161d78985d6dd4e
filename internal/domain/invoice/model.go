package invoice

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// Item is one invoice: an ordered collection of validated, priced acts for
// a single patient, submitted through exactly one billing channel.
type Item struct {
	ID string `db:"id" json:"id"`

	// InvoiceNumber is the human-facing unique number, e.g. FVX8LK2M9Q
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`

	PatientID string `db:"patient_id" json:"patient_id"`

	// InvoiceDate drives batch window eligibility
	InvoiceDate types.Date `db:"invoice_date" json:"invoice_date"`

	// IsPrivate must match the patient's classification; private invoices
	// never enter a submission batch
	IsPrivate bool `db:"is_private" json:"is_private"`

	Channel types.BillingChannel `db:"channel" json:"channel"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// BatchID is empty until the invoice is assigned to a batch
	BatchID string `db:"batch_id" json:"batch_id,omitempty"`

	types.BaseModel
}

// Validate checks structural invariants on the invoice
func (i *Item) Validate() error {
	if i.PatientID == "" {
		return ierr.NewError("patient id is required").
			WithHint("Invoice must reference a patient").
			Mark(ierr.ErrValidation)
	}
	if i.InvoiceDate.IsZero() {
		return ierr.NewError("invoice date is required").
			WithHint("Invoice must carry an invoice date").
			Mark(ierr.ErrValidation)
	}
	if err := i.Channel.Validate(); err != nil {
		return err
	}
	if i.IsPrivate != (i.Channel == types.BillingChannelPrivate) {
		return ierr.NewError("private flag does not match billing channel").
			WithHint("Private invoices must use the private channel and vice versa").
			WithReportableDetails(map[string]any{
				"is_private": i.IsPrivate,
				"channel":    i.Channel,
			}).
			Mark(ierr.ErrValidation)
	}
	return i.InvoiceStatus.Validate()
}

// Issued reports whether the invoice has been issued and is frozen
func (i *Item) Issued() bool {
	return i.InvoiceStatus == types.InvoiceStatusIssued
}

// Batch is a date-ranged grouping of non-private invoices for bulk
// submission to the insurer. Batch windows never overlap; that invariant is
// maintained at batch creation by the persistence layer.
type Batch struct {
	ID string `db:"id" json:"id"`

	Start types.Date `db:"start_date" json:"start_date"`
	End   types.Date `db:"end_date" json:"end_date"`

	BatchStatus types.BatchStatus `db:"batch_status" json:"batch_status"`

	types.BaseModel
}

// Validate checks structural invariants on the batch
func (b *Batch) Validate() error {
	if b.Start.IsZero() || b.End.IsZero() {
		return ierr.NewError("start and end dates are required").
			WithHint("Batch must be a closed date range").
			Mark(ierr.ErrValidation)
	}
	if b.End.Before(b.Start.Time) {
		return ierr.NewError("end date before start date").
			WithHint("Batch must end on or after its start date").
			Mark(ierr.ErrValidation)
	}
	return b.BatchStatus.Validate()
}

// ContainsDate reports whether the invoice date falls inside the batch
// window, inclusive on both ends
func (b *Batch) ContainsDate(d types.Date) bool {
	end := b.End
	return d.Between(b.Start, &end)
}

// Open reports whether the batch still accepts invoices
func (b *Batch) Open() bool {
	return b.BatchStatus == types.BatchStatusOpen
}
