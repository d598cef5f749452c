package service

import "errors"

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidEvent   = errors.New("invalid event")

	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrCapacityExceeded   = errors.New("not enough tickets left for this event")
	ErrNoTicketsAvailable = errors.New("no tickets available")

	ErrAlreadyUsed          = errors.New("ticket already used")
	ErrNotPaid              = errors.New("ticket not paid")
	ErrCannotTransferUsed   = errors.New("cannot transfer a used ticket")
	ErrCannotTransferUnpaid = errors.New("cannot transfer an unpaid ticket")
	ErrTransferConflict     = errors.New("ticket changed during transfer")
	ErrInvalidEmail         = errors.New("invalid email")

	ErrInvoicePending        = errors.New("invoice not settled yet")
	ErrInvoiceNotPaid        = errors.New("invoice not paid")
	ErrInvoiceNotFound       = errors.New("invoice not found")
	ErrInvoiceAlreadyUsed    = errors.New("invoice already used for a purchase")
	ErrInsufficientPayment   = errors.New("invoice amount below ticket price")
	ErrInvalidPaymentHash    = errors.New("invalid payment hash")
	ErrInvalidPaymentRequest = errors.New("invalid payment request")

	ErrTokenInvalid = errors.New("invalid ticket token")

	ErrOracleUnavailable = errors.New("lightning node unavailable")
	ErrStoreUnavailable  = errors.New("ticket store unavailable")
)
