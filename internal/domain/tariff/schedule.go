package tariff

import (
	"sort"

	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
	"github.com/shopspring/decimal"
)

// Schedule is the full set of validity intervals for one care code, kept
// sorted by start date. The no-overlap invariant is enforced at insertion
// time by Add; PriceOn still verifies it defensively because schedules can
// be rebuilt from persisted data the engine did not write.
type Schedule struct {
	careCodeID string
	intervals  []*ValidityDate
}

// NewSchedule builds a schedule from persisted intervals. The input is
// sorted, not validated: corrupt overlaps surface as ErrAmbiguousPrice at
// lookup time rather than making the whole code unloadable.
func NewSchedule(careCodeID string, intervals []*ValidityDate) *Schedule {
	sorted := make([]*ValidityDate, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start.Time)
	})
	return &Schedule{
		careCodeID: careCodeID,
		intervals:  sorted,
	}
}

// CareCodeID returns the care code this schedule prices
func (s *Schedule) CareCodeID() string {
	return s.careCodeID
}

// Intervals returns the intervals in ascending start order
func (s *Schedule) Intervals() []*ValidityDate {
	return s.intervals
}

// Add inserts a new interval, enforcing the write-time invariants:
// no overlap with any existing interval, at most one open-ended interval,
// and the open-ended interval must be the most recent.
func (s *Schedule) Add(v *ValidityDate) error {
	if err := v.Validate(); err != nil {
		return err
	}

	idx := sort.Search(len(s.intervals), func(i int) bool {
		return !s.intervals[i].Start.Before(v.Start.Time)
	})

	// only the immediate neighbours can overlap a valid schedule; checking
	// both sides also catches an equal start date
	if idx > 0 && s.intervals[idx-1].Overlaps(v) {
		return s.overlapError(v, s.intervals[idx-1])
	}
	if idx < len(s.intervals) && s.intervals[idx].Overlaps(v) {
		return s.overlapError(v, s.intervals[idx])
	}

	if v.OpenEnded() && idx != len(s.intervals) {
		return ierr.NewError("open-ended interval must be the most recent").
			WithHint("An open-ended price must start after every existing interval").
			WithReportableDetails(map[string]any{
				"care_code_id": s.careCodeID,
				"start_date":   v.Start.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	s.intervals = append(s.intervals, nil)
	copy(s.intervals[idx+1:], s.intervals[idx:])
	s.intervals[idx] = v
	return nil
}

// PriceOn resolves the gross amount effective on the given date.
// Boundaries are inclusive on both ends. Exactly one interval may match:
// zero matches is ErrNoPriceDefined, two or more is ErrAmbiguousPrice and
// is never resolved silently.
func (s *Schedule) PriceOn(d types.Date) (decimal.Decimal, error) {
	// rightmost interval starting on or before d
	idx := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Start.After(d.Time)
	}) - 1

	var matched *ValidityDate
	for i := idx; i >= 0; i-- {
		if !s.intervals[i].Contains(d) {
			continue
		}
		if matched != nil {
			return decimal.Zero, ierr.NewError("overlapping validity intervals").
				WithHint("Tariff data is corrupt: two prices cover the same date").
				WithReportableDetails(map[string]any{
					"care_code_id": s.careCodeID,
					"date":         d.String(),
				}).
				Mark(ierr.ErrAmbiguousPrice)
		}
		matched = s.intervals[i]
	}

	if matched == nil {
		return decimal.Zero, ierr.NewError("no price defined").
			WithHintf("No tariff price covers %s", d.String()).
			WithReportableDetails(map[string]any{
				"care_code_id": s.careCodeID,
				"date":         d.String(),
			}).
			Mark(ierr.ErrNoPriceDefined)
	}

	return matched.GrossAmount, nil
}

func (s *Schedule) overlapError(v, existing *ValidityDate) error {
	details := map[string]any{
		"care_code_id": s.careCodeID,
		"start_date":   v.Start.String(),
		"existing":     existing.Start.String(),
	}
	if v.End != nil {
		details["end_date"] = v.End.String()
	}
	return ierr.NewError("validity interval overlaps an existing one").
		WithHint("Close the current price before opening a new one").
		WithReportableDetails(details).
		Mark(ierr.ErrAlreadyExists)
}
