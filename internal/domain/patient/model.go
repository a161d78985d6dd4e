package patient

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// Flags is the snapshot of patient attributes the billing engine needs.
// The engine never loads patients itself; the persistence layer hands it
// this bundle per request.
type Flags struct {
	PatientID string `json:"patient_id" validate:"required"`

	// IsPrivate marks patients billed directly, outside the insurer channel
	IsPrivate bool `json:"is_private"`

	// ParticipationStatutaire waives the patient's statutory co-payment
	ParticipationStatutaire bool `json:"participation_statutaire"`

	// DateOfDeath, when set, makes every act on or after it unbillable
	DateOfDeath *types.Date `json:"date_of_death,omitempty"`

	Age int `json:"age"`
}

// HospitalizationPeriod is an inclusive date range during which no home
// care act may be billed for the patient.
type HospitalizationPeriod struct {
	ID        string     `db:"id" json:"id"`
	PatientID string     `db:"patient_id" json:"patient_id"`
	Start     types.Date `db:"start_date" json:"start_date"`
	End       types.Date `db:"end_date" json:"end_date"`

	types.BaseModel
}

// Validate checks structural invariants on a single period
func (h *HospitalizationPeriod) Validate() error {
	if h.PatientID == "" {
		return ierr.NewError("patient id is required").
			WithHint("Hospitalization period must reference a patient").
			Mark(ierr.ErrValidation)
	}
	if h.Start.IsZero() || h.End.IsZero() {
		return ierr.NewError("start and end dates are required").
			WithHint("Hospitalization period must be a closed date range").
			Mark(ierr.ErrValidation)
	}
	if h.End.Before(h.Start.Time) {
		return ierr.NewError("end date before start date").
			WithHint("Hospitalization period must end on or after its start date").
			WithReportableDetails(map[string]any{
				"start_date": h.Start.String(),
				"end_date":   h.End.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Contains reports whether the period covers the given date, inclusive on
// both ends
func (h *HospitalizationPeriod) Contains(d types.Date) bool {
	end := h.End
	return d.Between(h.Start, &end)
}

// Overlaps reports whether two periods share at least one date
func (h *HospitalizationPeriod) Overlaps(other *HospitalizationPeriod) bool {
	if other == nil {
		return false
	}
	return !h.End.Before(other.Start.Time) && !other.End.Before(h.Start.Time)
}
