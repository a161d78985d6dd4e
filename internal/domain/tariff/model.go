package tariff

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
	"github.com/shopspring/decimal"
)

// ValidityDate is a time-bounded price entry for a care code. Intervals are
// inclusive on both ends; a nil End means the price is currently valid.
type ValidityDate struct {
	ID string `db:"id" json:"id"`

	// CareCodeID is the id of the care code this price belongs to
	CareCodeID string `db:"care_code_id" json:"care_code_id"`

	// Start is the first date the price applies
	Start types.Date `db:"start_date" json:"start_date"`

	// End is the last date the price applies; nil = open-ended
	End *types.Date `db:"end_date" json:"end_date,omitempty"`

	// GrossAmount is the full tariff price, in euros with 2-decimal precision
	GrossAmount decimal.Decimal `db:"gross_amount" json:"gross_amount"`

	types.BaseModel
}

// Validate checks structural invariants on a single interval
func (v *ValidityDate) Validate() error {
	if v.CareCodeID == "" {
		return ierr.NewError("care code id is required").
			WithHint("Validity interval must reference a care code").
			Mark(ierr.ErrValidation)
	}
	if v.Start.IsZero() {
		return ierr.NewError("start date is required").
			WithHint("Validity interval must have a start date").
			Mark(ierr.ErrValidation)
	}
	if v.End != nil && v.End.Before(v.Start.Time) {
		return ierr.NewError("end date before start date").
			WithHint("Validity interval must end on or after its start date").
			WithReportableDetails(map[string]any{
				"start_date": v.Start.String(),
				"end_date":   v.End.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if v.GrossAmount.IsNegative() {
		return ierr.NewError("gross amount must not be negative").
			WithHint("Tariff prices cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Contains reports whether the interval covers the given date, inclusive on
// both ends
func (v *ValidityDate) Contains(d types.Date) bool {
	return d.Between(v.Start, v.End)
}

// Overlaps reports whether two intervals share at least one date
func (v *ValidityDate) Overlaps(other *ValidityDate) bool {
	if other == nil {
		return false
	}
	if v.End != nil && v.End.Before(other.Start.Time) {
		return false
	}
	if other.End != nil && other.End.Before(v.Start.Time) {
		return false
	}
	return true
}

// OpenEnded reports whether the interval has no end date
func (v *ValidityDate) OpenEnded() bool {
	return v.End == nil
}
