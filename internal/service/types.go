package service

import (
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

type CreateEventInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Date        time.Time `json:"date" validate:"required"`
	TicketPrice int64     `json:"ticket_price" validate:"gte=1"`
	TicketCount int64     `json:"ticket_count" validate:"gte=1"`
}

type IssueBulkPurchaseInput struct {
	EventID    string `json:"-"`
	Quantity   int64  `json:"quantity" validate:"gte=1,lte=100"`
	OwnerEmail string `json:"owner_email,omitempty" validate:"omitempty,email"`
	Category   string `json:"category,omitempty" validate:"max=64"`
	// SeatNumbers assigns seats in ticket order; tickets past the end get none.
	SeatNumbers []string `json:"seat_numbers,omitempty" validate:"max=100,dive,max=32"`
}

type TicketTokenOutput struct {
	TicketID  string    `json:"ticket_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TransferItem struct {
	TicketID      string `json:"ticket_id" validate:"required"`
	NewOwnerEmail string `json:"new_owner_email" validate:"required"`
}

type BulkItemResult struct {
	TicketID string         `json:"ticket_id"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Err      error          `json:"-"`
	Ticket   *models.Ticket `json:"ticket,omitempty"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkOutput keeps results in the order the items were given.
type BulkOutput struct {
	Results []BulkItemResult `json:"results"`
	Summary BulkSummary      `json:"summary"`
}

func (o *BulkOutput) add(r BulkItemResult) {
	if r.Err != nil {
		r.Error = r.Err.Error()
		o.Summary.Failed++
	} else {
		r.Success = true
		o.Summary.Successful++
	}
	o.Summary.Total++
	o.Results = append(o.Results, r)
}

type ExpireOutput struct {
	EventID          string `json:"event_id"`
	Deleted          int64  `json:"deleted"`
	Confirmed        int64  `json:"confirmed"`
	CapacityReleased bool   `json:"capacity_released"`
	// Skipped counts stale invoices kept because the node could not be asked.
	Skipped int64 `json:"skipped"`
}

type ListTicketsInput struct {
	EventID       string
	Status        models.TicketStatus
	InvoiceStatus models.InvoiceStatus
	PaymentHash   string
}
