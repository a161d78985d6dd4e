package types

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/samber/lo"
)

const (
	// PrestationLimitMax is the maximum number of acts a single invoice may
	// hold, fixed by the insurer's submission format.
	PrestationLimitMax = 20

	// AtHomeLimitMax is the number of at-home acts allowed on one invoice
	// unless the codes involved are declared pairs.
	AtHomeLimitMax = 1
)

// InvoiceStatus is the lifecycle state of an invoice. Once issued, the
// invoice and every prestation attached to it are frozen.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "DRAFT"
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusIssued,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BatchStatus is the lifecycle state of a submission batch
type BatchStatus string

const (
	BatchStatusOpen   BatchStatus = "OPEN"
	BatchStatusClosed BatchStatus = "CLOSED"
)

func (s BatchStatus) String() string {
	return string(s)
}

func (s BatchStatus) Validate() error {
	allowed := []BatchStatus{
		BatchStatusOpen,
		BatchStatusClosed,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid batch status").
			WithHint("Please provide a valid batch status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
