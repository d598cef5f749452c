package kafka

import "time"

// Events published BY the ticket service

type TicketsReservedEvent struct {
	EventID     string    `json:"event_id"`
	TicketIDs   []string  `json:"ticket_ids"`
	PaymentHash string    `json:"payment_hash"`
	AmountSats  int64     `json:"amount_sats"`
	OwnerEmail  string    `json:"owner_email,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	Timestamp   time.Time `json:"timestamp"`
}

type PaymentConfirmedEvent struct {
	EventID      string    `json:"event_id"`
	PaymentHash  string    `json:"payment_hash"`
	UpdatedCount int64     `json:"updated_count"`
	Timestamp    time.Time `json:"timestamp"`
}

type TicketClaimedEvent struct {
	EventID     string    `json:"event_id"`
	TicketID    string    `json:"ticket_id"`
	PaymentHash string    `json:"payment_hash"`
	Timestamp   time.Time `json:"timestamp"`
}

type TicketCheckedInEvent struct {
	EventID     string    `json:"event_id"`
	TicketID    string    `json:"ticket_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
	Timestamp   time.Time `json:"timestamp"`
}

type TicketTransferredEvent struct {
	EventID   string    `json:"event_id"`
	TicketID  string    `json:"ticket_id"`
	FromEmail string    `json:"from_email,omitempty"`
	ToEmail   string    `json:"to_email"`
	Timestamp time.Time `json:"timestamp"`
}

type TicketsExpiredEvent struct {
	EventID          string    `json:"event_id"`
	ExpiredCount     int64     `json:"expired_count"`
	CapacityReleased bool      `json:"capacity_released"`
	Timestamp        time.Time `json:"timestamp"`
}

// Events consumed BY the ticket service (from the Lightning node bridge)

type InvoiceSettledEvent struct {
	PaymentHash    string    `json:"payment_hash"`
	AmountPaidSats int64     `json:"amount_paid_sats"`
	SettledAt      time.Time `json:"settled_at"`
	SettleIndex    uint64    `json:"settle_index,omitempty"`
}
