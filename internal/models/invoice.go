package models

import "time"

// InvoiceState mirrors the invoice states reported by the Lightning node.
type InvoiceState string

const (
	InvoiceStateOpen     InvoiceState = "OPEN"
	InvoiceStateAccepted InvoiceState = "ACCEPTED"
	InvoiceStateSettled  InvoiceState = "SETTLED"
	InvoiceStateCanceled InvoiceState = "CANCELED"
)

// IsTerminal reports whether the node will never change this state again.
func (s InvoiceState) IsTerminal() bool {
	return s == InvoiceStateSettled || s == InvoiceStateCanceled
}

// Invoice is a payment request minted by the Lightning node. It is never
// stored: tickets keep the payment hash and request string.
type Invoice struct {
	PaymentHash    string    `json:"payment_hash"`
	PaymentRequest string    `json:"payment_request"`
	PaymentAddr    string    `json:"payment_addr,omitempty"`
	AmountSats     int64     `json:"amount_sats"`
	Memo           string    `json:"memo,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type InvoiceLookup struct {
	PaymentHash    string       `json:"payment_hash"`
	State          InvoiceState `json:"state"`
	Settled        bool         `json:"is_paid"`
	AmountPaidSats int64        `json:"amount_paid_sats"`
	SettledAt      *time.Time   `json:"settled_at,omitempty"`
}

type DecodedInvoice struct {
	PaymentHash string    `json:"payment_hash"`
	AmountSats  int64     `json:"amount_sats"`
	Memo        string    `json:"memo,omitempty"`
	Network     string    `json:"network"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Settlement is a push notification that an invoice was paid. It may be
// delivered more than once.
type Settlement struct {
	PaymentHash    string    `json:"payment_hash"`
	AmountPaidSats int64     `json:"amount_paid_sats"`
	SettledAt      time.Time `json:"settled_at"`
	SettleIndex    uint64    `json:"settle_index,omitempty"`
}
