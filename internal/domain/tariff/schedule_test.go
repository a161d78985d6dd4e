package tariff

import (
	"testing"

	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(s string) *types.Date {
	d := types.MustDate(s)
	return &d
}

func interval(start string, end *types.Date, amount string) *ValidityDate {
	return &ValidityDate{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_VALIDITY),
		CareCodeID:  "code-1",
		Start:       types.MustDate(start),
		End:         end,
		GrossAmount: decimal.RequireFromString(amount),
	}
}

func TestScheduleAddAndResolve(t *testing.T) {
	s := NewSchedule("code-1", nil)

	require.NoError(t, s.Add(interval("2014-01-01", datePtr("2014-12-31"), "28.50")))
	require.NoError(t, s.Add(interval("2015-01-01", nil, "30.00")))

	price, err := s.PriceOn(types.MustDate("2015-06-15"))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("30.00")))

	price, err = s.PriceOn(types.MustDate("2014-06-15"))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("28.50")))
}

func TestScheduleBoundariesAreInclusive(t *testing.T) {
	s := NewSchedule("code-1", nil)
	require.NoError(t, s.Add(interval("2015-01-01", datePtr("2015-12-31"), "30.00")))

	for _, date := range []string{"2015-01-01", "2015-12-31"} {
		price, err := s.PriceOn(types.MustDate(date))
		require.NoError(t, err, date)
		assert.True(t, price.Equal(decimal.RequireFromString("30.00")), date)
	}

	_, err := s.PriceOn(types.MustDate("2014-12-31"))
	assert.True(t, ierr.IsNoPriceDefined(err))

	_, err = s.PriceOn(types.MustDate("2016-01-01"))
	assert.True(t, ierr.IsNoPriceDefined(err))
}

func TestScheduleNoPriceInGap(t *testing.T) {
	s := NewSchedule("code-1", nil)
	require.NoError(t, s.Add(interval("2014-01-01", datePtr("2014-06-30"), "28.50")))
	require.NoError(t, s.Add(interval("2015-01-01", nil, "30.00")))

	_, err := s.PriceOn(types.MustDate("2014-09-15"))
	assert.True(t, ierr.IsNoPriceDefined(err))
}

func TestScheduleRejectsOverlapOnAdd(t *testing.T) {
	tests := []struct {
		name     string
		existing *ValidityDate
		added    *ValidityDate
	}{
		{
			name:     "closed intervals overlap",
			existing: interval("2015-01-01", datePtr("2015-12-31"), "30.00"),
			added:    interval("2015-06-01", datePtr("2016-06-01"), "31.00"),
		},
		{
			name:     "same start date",
			existing: interval("2015-01-01", datePtr("2015-12-31"), "30.00"),
			added:    interval("2015-01-01", datePtr("2015-03-31"), "31.00"),
		},
		{
			name:     "new interval starts inside open-ended tail",
			existing: interval("2015-01-01", nil, "30.00"),
			added:    interval("2018-01-01", datePtr("2018-12-31"), "31.00"),
		},
		{
			name:     "second open-ended interval",
			existing: interval("2015-01-01", nil, "30.00"),
			added:    interval("2018-01-01", nil, "31.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSchedule("code-1", nil)
			require.NoError(t, s.Add(tt.existing))
			err := s.Add(tt.added)
			require.Error(t, err)
			assert.True(t, ierr.IsAlreadyExists(err))
		})
	}
}

func TestScheduleRejectsOpenEndedBeforeExisting(t *testing.T) {
	s := NewSchedule("code-1", nil)
	require.NoError(t, s.Add(interval("2015-01-01", datePtr("2015-12-31"), "30.00")))

	err := s.Add(interval("2014-01-01", nil, "28.50"))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestScheduleRejectsInvalidInterval(t *testing.T) {
	s := NewSchedule("code-1", nil)

	err := s.Add(interval("2015-12-31", datePtr("2015-01-01"), "30.00"))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	err = s.Add(interval("2015-01-01", nil, "-1.00"))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestScheduleAmbiguousOverlapFailsLoud(t *testing.T) {
	// corrupt persisted data bypasses Add; the lookup must fail rather than
	// silently pick one interval
	s := NewSchedule("code-1", []*ValidityDate{
		interval("2015-01-01", nil, "30.00"),
		interval("2015-06-01", datePtr("2015-12-31"), "31.00"),
	})

	_, err := s.PriceOn(types.MustDate("2015-07-01"))
	require.Error(t, err)
	assert.True(t, ierr.IsAmbiguousPrice(err))

	// dates covered by exactly one interval still resolve
	price, err := s.PriceOn(types.MustDate("2015-02-01"))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("30.00")))
}

func TestScheduleDefinedInsideEveryIntervalUndefinedOutside(t *testing.T) {
	s := NewSchedule("code-1", nil)
	require.NoError(t, s.Add(interval("2013-01-01", datePtr("2013-12-31"), "27.00")))
	require.NoError(t, s.Add(interval("2014-03-01", datePtr("2014-12-31"), "28.50")))
	require.NoError(t, s.Add(interval("2015-01-01", nil, "30.00")))

	for _, iv := range s.Intervals() {
		_, err := s.PriceOn(iv.Start)
		assert.NoError(t, err)
		if iv.End != nil {
			_, err = s.PriceOn(*iv.End)
			assert.NoError(t, err)
		}
	}

	for _, outside := range []string{"2012-12-31", "2014-01-15", "2014-02-28"} {
		_, err := s.PriceOn(types.MustDate(outside))
		assert.True(t, ierr.IsNoPriceDefined(err), outside)
	}
}
