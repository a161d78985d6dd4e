package patient

import (
	"testing"

	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func period(start, end string) *HospitalizationPeriod {
	return &HospitalizationPeriod{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HOSPITALIZATION),
		PatientID: "pat-1",
		Start:     types.MustDate(start),
		End:       types.MustDate(end),
	}
}

func TestHospitalizationsCoversInclusiveBounds(t *testing.T) {
	h := NewHospitalizations("pat-1", nil)
	require.NoError(t, h.Add(period("2023-02-01", "2023-03-01")))

	tests := []struct {
		date string
		want bool
	}{
		{date: "2023-01-31", want: false},
		{date: "2023-02-01", want: true},
		{date: "2023-02-15", want: true},
		{date: "2023-03-01", want: true},
		{date: "2023-03-02", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, h.Covers(types.MustDate(tt.date)), tt.date)
	}
}

func TestHospitalizationsCoversWithMultiplePeriods(t *testing.T) {
	h := NewHospitalizations("pat-1", []*HospitalizationPeriod{
		period("2023-05-10", "2023-05-20"),
		period("2023-01-01", "2023-01-05"),
		period("2023-03-01", "2023-03-15"),
	})

	assert.True(t, h.Covers(types.MustDate("2023-01-03")))
	assert.True(t, h.Covers(types.MustDate("2023-03-15")))
	assert.True(t, h.Covers(types.MustDate("2023-05-10")))
	assert.False(t, h.Covers(types.MustDate("2023-02-01")))
	assert.False(t, h.Covers(types.MustDate("2023-06-01")))
}

func TestHospitalizationsAddRejectsOverlap(t *testing.T) {
	h := NewHospitalizations("pat-1", nil)
	require.NoError(t, h.Add(period("2023-02-01", "2023-03-01")))

	err := h.Add(period("2023-02-20", "2023-03-10"))
	require.Error(t, err)
	assert.True(t, ierr.IsAlreadyExists(err))

	// touching on a single shared day is still an overlap
	err = h.Add(period("2023-03-01", "2023-03-05"))
	require.Error(t, err)
	assert.True(t, ierr.IsAlreadyExists(err))

	// adjacent but disjoint is fine
	require.NoError(t, h.Add(period("2023-03-02", "2023-03-05")))
}

func TestHospitalizationPeriodValidate(t *testing.T) {
	err := period("2023-03-01", "2023-02-01").Validate()
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	p := period("2023-02-01", "2023-03-01")
	p.PatientID = ""
	err = p.Validate()
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
