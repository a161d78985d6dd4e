package exclusivity

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
	"github.com/samber/lo"
)

// Group declares a set of care codes of which at most one may be billed for
// the same patient on the same day. The relation is symmetric and
// unordered.
type Group struct {
	ID string `db:"id" json:"id"`

	// Name is a short label for the rule, e.g. "complex care levels"
	Name string `db:"name" json:"name"`

	// Codes are the mutually exclusive care codes, by nomenclature code
	Codes []string `db:"codes" json:"codes"`

	types.BaseModel
}

// Validate checks that the group declares a usable relation
func (g *Group) Validate() error {
	codes := lo.Uniq(g.Codes)
	if len(codes) < 2 {
		return ierr.NewError("exclusivity group needs at least two distinct codes").
			WithHint("An exclusivity rule relates two or more care codes").
			WithReportableDetails(map[string]any{
				"codes": g.Codes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
