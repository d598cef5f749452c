package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-lightning/pkg/errors"
)

var (
	errEventNotFound        = pkgErrors.NewHTTPError("TKT001", "Event not found", http.StatusNotFound)
	errTicketNotFound       = pkgErrors.NewHTTPError("TKT002", "Ticket not found", http.StatusNotFound)
	errInvalidEvent         = pkgErrors.NewHTTPError("TKT003", "Invalid event", http.StatusBadRequest)
	errInvalidQuantity      = pkgErrors.NewHTTPError("TKT004", "Invalid quantity", http.StatusBadRequest)
	errCapacityExceeded     = pkgErrors.NewHTTPError("TKT005", "Not enough tickets left", http.StatusConflict)
	errNoTicketsAvailable   = pkgErrors.NewHTTPError("TKT006", "No tickets available", http.StatusConflict)
	errAlreadyUsed          = pkgErrors.NewHTTPError("TKT007", "Ticket already used", http.StatusConflict)
	errNotPaid              = pkgErrors.NewHTTPError("TKT008", "Ticket is not paid", http.StatusConflict)
	errCannotTransferUsed   = pkgErrors.NewHTTPError("TKT009", "Used tickets cannot be transferred", http.StatusConflict)
	errCannotTransferUnpaid = pkgErrors.NewHTTPError("TKT010", "Unpaid tickets cannot be transferred", http.StatusConflict)
	errTransferConflict     = pkgErrors.NewHTTPError("TKT011", "Ticket changed during transfer", http.StatusConflict)
	errInvalidEmail         = pkgErrors.NewHTTPError("TKT012", "Invalid email", http.StatusBadRequest)
	errInvoicePending       = pkgErrors.NewHTTPError("TKT013", "Invoice is not paid yet", http.StatusConflict)
	errInvoiceNotFound      = pkgErrors.NewHTTPError("TKT014", "Invoice not found", http.StatusNotFound)
	errInvoiceNotPaid       = pkgErrors.NewHTTPError("TKT015", "Invoice is not paid", http.StatusPaymentRequired)
	errInvoiceAlreadyUsed   = pkgErrors.NewHTTPError("TKT016", "Invoice already used for a purchase", http.StatusConflict)
	errInsufficientPayment  = pkgErrors.NewHTTPError("TKT017", "Invoice amount below ticket price", http.StatusPaymentRequired)
	errInvalidPaymentHash   = pkgErrors.NewHTTPError("TKT018", "Invalid payment hash", http.StatusBadRequest)
	errInvalidPaymentReq    = pkgErrors.NewHTTPError("TKT019", "Invalid payment request", http.StatusBadRequest)
	errTokenInvalid         = pkgErrors.NewHTTPError("TKT020", "Invalid ticket token", http.StatusUnauthorized)
	errOracleUnavailable    = pkgErrors.NewHTTPError("TKT021", "Lightning node unavailable", http.StatusServiceUnavailable)
	errStoreUnavailable     = pkgErrors.NewHTTPError("TKT022", "Storage unavailable", http.StatusServiceUnavailable)
	errInvalidRequest       = pkgErrors.NewHTTPError("TKT023", "Invalid request", http.StatusBadRequest)
)

var errTable = []struct {
	target error
	out    *pkgErrors.HTTPError
}{
	{service.ErrEventNotFound, errEventNotFound},
	{service.ErrTicketNotFound, errTicketNotFound},
	{service.ErrInvalidEvent, errInvalidEvent},
	{service.ErrInvalidQuantity, errInvalidQuantity},
	{service.ErrCapacityExceeded, errCapacityExceeded},
	{service.ErrNoTicketsAvailable, errNoTicketsAvailable},
	{service.ErrAlreadyUsed, errAlreadyUsed},
	{service.ErrNotPaid, errNotPaid},
	{service.ErrCannotTransferUsed, errCannotTransferUsed},
	{service.ErrCannotTransferUnpaid, errCannotTransferUnpaid},
	{service.ErrTransferConflict, errTransferConflict},
	{service.ErrInvalidEmail, errInvalidEmail},
	{service.ErrInvoicePending, errInvoicePending},
	{service.ErrInvoiceNotFound, errInvoiceNotFound},
	{service.ErrInvoiceNotPaid, errInvoiceNotPaid},
	{service.ErrInvoiceAlreadyUsed, errInvoiceAlreadyUsed},
	{service.ErrInsufficientPayment, errInsufficientPayment},
	{service.ErrInvalidPaymentHash, errInvalidPaymentHash},
	{service.ErrInvalidPaymentRequest, errInvalidPaymentReq},
	{service.ErrTokenInvalid, errTokenInvalid},
	{service.ErrOracleUnavailable, errOracleUnavailable},
	{service.ErrStoreUnavailable, errStoreUnavailable},
}

// mapHTTPError turns service errors into coded API errors. Unknown errors
// pass through unchanged with ok false and render as 500.
func mapHTTPError(err error) (error, bool) {
	for _, e := range errTable {
		if errors.Is(err, e.target) {
			return e.out, true
		}
	}
	return err, false
}
