package models

import "time"

// PaymentStatus is the client-facing state of a bulk purchase payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusExpired PaymentStatus = "expired"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusExpired
}

type PaymentCheck struct {
	EventID      string        `json:"event_id"`
	PaymentHash  string        `json:"payment_hash"`
	Status       PaymentStatus `json:"status"`
	UpdatedCount int64         `json:"updated_count"`
	CheckedAt    time.Time     `json:"checked_at"`
}

type ClaimResult struct {
	Ticket         *Ticket `json:"ticket"`
	AlreadyClaimed bool    `json:"already_claimed"`
}

// PaymentUpdate is published to Redis Pub/Sub when a payment changes state.
type PaymentUpdate struct {
	EventID      string        `json:"event_id"`
	PaymentHash  string        `json:"payment_hash"`
	Status       PaymentStatus `json:"status"`
	UpdatedCount int64         `json:"updated_count"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Purchase is the result of a bulk purchase: pending tickets bound to one invoice.
type Purchase struct {
	EventID   string    `json:"event_id"`
	Tickets   []*Ticket `json:"tickets"`
	Invoice   *Invoice  `json:"invoice"`
	TotalSats int64     `json:"total_sats"`
	TotalBTC  string    `json:"total_btc"`
}
