package models

import "time"

type TicketStatus string

const (
	TicketStatusPending TicketStatus = "pending"
	TicketStatusValid   TicketStatus = "valid"
	TicketStatusUsed    TicketStatus = "used"
)

// CanTransitionTo reports whether a ticket may move from s to next.
// Status only moves forward: pending -> valid -> used.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	switch s {
	case TicketStatusPending:
		return next == TicketStatusValid
	case TicketStatusValid:
		return next == TicketStatusUsed
	default:
		return false
	}
}

func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusPending, TicketStatusValid, TicketStatusUsed:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusExpired InvoiceStatus = "expired"
)

// TicketSource records which flow created a ticket.
type TicketSource string

const (
	TicketSourceBulk  TicketSource = "bulk"
	TicketSourceClaim TicketSource = "claim"
)

type TransferRecord struct {
	FromEmail     string    `json:"from_email,omitempty"`
	ToEmail       string    `json:"to_email"`
	TransferredAt time.Time `json:"transferred_at"`
}

type Ticket struct {
	ID              string           `json:"id"`
	EventID         string           `json:"event_id"`
	Status          TicketStatus     `json:"status"`
	Source          TicketSource     `json:"source"`
	CreatedAt       time.Time        `json:"created_at"`
	InvoiceID       string           `json:"invoice_id,omitempty"`
	InvoiceRequest  string           `json:"invoice_request,omitempty"`
	InvoiceStatus   InvoiceStatus    `json:"invoice_status,omitempty"`
	SeatNumber      string           `json:"seat_number,omitempty"`
	Category        string           `json:"category,omitempty"`
	CheckedInAt     *time.Time       `json:"checked_in_at,omitempty"`
	OwnerEmail      string           `json:"owner_email,omitempty"`
	OwnerAddress    string           `json:"owner_address,omitempty"`
	TransferredAt   *time.Time       `json:"transferred_at,omitempty"`
	TransferHistory []TransferRecord `json:"transfer_history,omitempty"`
	Version         int64            `json:"version"`
}

func (t *Ticket) IsPaid() bool {
	return t.InvoiceStatus == InvoiceStatusPaid
}

func (t *Ticket) IsUsed() bool {
	return t.Status == TicketStatusUsed
}

func (t *Ticket) CanCheckIn() bool {
	return !t.IsUsed() && t.IsPaid()
}

func (t *Ticket) CanTransfer() bool {
	return !t.IsUsed() && t.IsPaid()
}

// IsStalePending reports whether an unpaid pending ticket was created before cutoff.
func (t *Ticket) IsStalePending(cutoff time.Time) bool {
	return t.Status == TicketStatusPending && t.CreatedAt.Before(cutoff)
}
