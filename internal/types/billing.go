package types

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BillingChannel identifies who an invoice is submitted to. Channels are
// mutually exclusive: acts billed through different channels never share an
// invoice.
type BillingChannel string

const (
	// BillingChannelCNS is the national health insurer (Caisse Nationale de Santé)
	BillingChannelCNS BillingChannel = "CNS"
	// BillingChannelPrivate bills the patient directly, with no reimbursement
	BillingChannelPrivate BillingChannel = "PRIVATE"
	// BillingChannelLongTermCare is the long-term-care insurance (assurance dépendance)
	BillingChannelLongTermCare BillingChannel = "LONG_TERM_CARE"
)

func (c BillingChannel) String() string {
	return string(c)
}

func (c BillingChannel) Validate() error {
	allowed := []BillingChannel{
		BillingChannelCNS,
		BillingChannelPrivate,
		BillingChannelLongTermCare,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid billing channel").
			WithHint("Please provide a valid billing channel").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingResult is the priced outcome for one care act.
// Gross is the full tariff price; Net is the insurer share; personal
// participation is the patient's statutory co-payment. Each component is
// rounded to 2 decimals independently, so Net + PersonalParticipation may
// legitimately differ from Gross by a cent.
type BillingResult struct {
	Gross                 decimal.Decimal `json:"gross"`
	Net                   decimal.Decimal `json:"net"`
	PersonalParticipation decimal.Decimal `json:"personal_participation"`
}

// RejectionReason is the machine-readable code attached to a validation
// rejection
type RejectionReason string

const (
	RejectionReasonHospitalized     RejectionReason = "HOSPITALIZED"
	RejectionReasonDeceased         RejectionReason = "DECEASED"
	RejectionReasonCodeConflict     RejectionReason = "CODE_CONFLICT"
	RejectionReasonCapacityExceeded RejectionReason = "CAPACITY_EXCEEDED"
)

func (r RejectionReason) String() string {
	return string(r)
}

func (r RejectionReason) Validate() error {
	allowed := []RejectionReason{
		RejectionReasonHospitalized,
		RejectionReasonDeceased,
		RejectionReasonCodeConflict,
		RejectionReasonCapacityExceeded,
	}
	if !lo.Contains(allowed, r) {
		return ierr.NewError("invalid rejection reason").
			WithHint("Please provide a valid rejection reason").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidationRejection is a normal business outcome, not an error: rejecting
// an act happens constantly during invoice assembly and the caller has to
// show it to a user.
type ValidationRejection struct {
	Reason  RejectionReason `json:"reason"`
	Message string          `json:"message"`
}

// ValidationResult is the verdict for one act. Rejection is nil when the
// act was accepted.
type ValidationResult struct {
	Accepted  bool                 `json:"accepted"`
	Rejection *ValidationRejection `json:"rejection,omitempty"`
}

// Accept returns an accepting verdict
func Accept() *ValidationResult {
	return &ValidationResult{Accepted: true}
}

// Reject returns a rejecting verdict with the given reason and message
func Reject(reason RejectionReason, message string) *ValidationResult {
	return &ValidationResult{
		Accepted: false,
		Rejection: &ValidationRejection{
			Reason:  reason,
			Message: message,
		},
	}
}
