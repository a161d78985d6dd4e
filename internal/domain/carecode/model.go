package carecode

import (
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/types"
)

// CareCode is a billable tariff code for a type of nursing act. Codes with
// billed history are immutable; prices evolve through validity intervals,
// never by editing the code itself.
type CareCode struct {
	ID string `db:"id" json:"id"`

	// Code is the nomenclature identifier, e.g. "N29". Unique.
	Code string `db:"code" json:"code"`

	// Name is the display name of the act
	Name string `db:"name" json:"name"`

	// Reimbursed reports whether the insurer reimburses this code at all.
	// Non-reimbursed codes always price to a zero net amount.
	Reimbursed bool `db:"reimbursed" json:"reimbursed"`

	// Channel is the submission channel for acts billed under this code
	Channel types.BillingChannel `db:"channel" json:"channel"`

	// AtHomePairCode names the one code this code may share an at-home slot
	// with on the same invoice. Empty means no pairing.
	AtHomePairCode string `db:"at_home_pair_code" json:"at_home_pair_code,omitempty"`

	types.BaseModel
}

// Validate checks structural invariants on the code definition
func (c *CareCode) Validate() error {
	if c.Code == "" {
		return ierr.NewError("care code is required").
			WithHint("Care code cannot be empty").
			Mark(ierr.ErrValidation)
	}
	if c.AtHomePairCode == c.Code && c.Code != "" {
		return ierr.NewError("care code cannot pair with itself").
			WithHint("At-home pair code must reference a different code").
			WithReportableDetails(map[string]any{
				"code": c.Code,
			}).
			Mark(ierr.ErrValidation)
	}
	if c.Channel != "" {
		if err := c.Channel.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PairsWith reports whether the given code is this code's declared at-home
// pair. The relation is checked in one direction only; tariff imports
// declare both sides.
func (c *CareCode) PairsWith(code string) bool {
	return c.AtHomePairCode != "" && c.AtHomePairCode == code
}
