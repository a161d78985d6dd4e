package invoice

import (
	"fmt"

	"github.com/curanet/nursebill/internal/types"
)

// NextInvoiceNumber produces a unique human-facing invoice number.
// Uniqueness comes from the shortid component; the invoice year prefix is
// only there so numbers sort usefully in exports.
func NextInvoiceNumber(invoiceDate types.Date) string {
	return fmt.Sprintf("%d-%s", invoiceDate.Year(),
		types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE_NUMBER))
}
