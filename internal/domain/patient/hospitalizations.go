package patient

import (
	"sort"

	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// Hospitalizations is one patient's periods kept sorted by start date,
// giving O(log n) coverage lookups instead of scanning every period per
// validated act.
type Hospitalizations struct {
	patientID string
	periods   []*HospitalizationPeriod
}

// NewHospitalizations builds a sorted set from persisted periods
func NewHospitalizations(patientID string, periods []*HospitalizationPeriod) *Hospitalizations {
	sorted := make([]*HospitalizationPeriod, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start.Time)
	})
	return &Hospitalizations{
		patientID: patientID,
		periods:   sorted,
	}
}

// Periods returns the periods in ascending start order
func (h *Hospitalizations) Periods() []*HospitalizationPeriod {
	return h.periods
}

// Add inserts a period, rejecting overlap with any existing one
func (h *Hospitalizations) Add(p *HospitalizationPeriod) error {
	if err := p.Validate(); err != nil {
		return err
	}

	idx := sort.Search(len(h.periods), func(i int) bool {
		return !h.periods[i].Start.Before(p.Start.Time)
	})

	if idx > 0 && h.periods[idx-1].Overlaps(p) {
		return h.overlapError(p, h.periods[idx-1])
	}
	if idx < len(h.periods) && h.periods[idx].Overlaps(p) {
		return h.overlapError(p, h.periods[idx])
	}

	h.periods = append(h.periods, nil)
	copy(h.periods[idx+1:], h.periods[idx:])
	h.periods[idx] = p
	return nil
}

// Covers reports whether any period contains the given date. Binary search
// on the sorted starts; with non-overlapping periods only the rightmost
// period starting on or before d can contain it.
func (h *Hospitalizations) Covers(d types.Date) bool {
	idx := sort.Search(len(h.periods), func(i int) bool {
		return h.periods[i].Start.After(d.Time)
	}) - 1
	if idx < 0 {
		return false
	}
	return h.periods[idx].Contains(d)
}

func (h *Hospitalizations) overlapError(p, existing *HospitalizationPeriod) error {
	return ierr.NewError("hospitalization periods overlap").
		WithHint("A patient cannot have two hospitalizations on the same date").
		WithReportableDetails(map[string]any{
			"patient_id": h.patientID,
			"start_date": p.Start.String(),
			"end_date":   p.End.String(),
			"existing":   existing.Start.String(),
		}).
		Mark(ierr.ErrAlreadyExists)
}
