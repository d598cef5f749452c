// Package lightning talks to the Lightning node that mints and settles
// ticket invoices. The rest of the service only sees InvoiceOracle and
// treats invoices as read-only facts owned by the node.
package lightning

import (
	"context"
	"errors"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

var (
	ErrOracleUnavailable     = errors.New("lightning node unavailable")
	ErrInvoiceNotFound       = errors.New("invoice not found")
	ErrInvalidPaymentHash    = errors.New("invalid payment hash")
	ErrInvalidPaymentRequest = errors.New("invalid payment request")
)

type InvoiceOracle interface {
	// CreateInvoice mints a new invoice for amountSats that expires after expiry.
	CreateInvoice(ctx context.Context, amountSats int64, memo string, expiry time.Duration) (*models.Invoice, error)
	// LookupInvoiceStatus returns ErrInvoiceNotFound for hashes the node does not know.
	LookupInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error)
	// SubscribeSettlements streams settled invoices until ctx is done.
	// Delivery is at least once.
	SubscribeSettlements(ctx context.Context) (<-chan models.Settlement, error)
}
