package kafka

const (
	TopicTicketsReserved   = "ticket.reserved"
	TopicPaymentConfirmed  = "ticket.payment_confirmed"
	TopicTicketClaimed     = "ticket.claimed"
	TopicTicketCheckedIn   = "ticket.checked_in"
	TopicTicketTransferred = "ticket.transferred"
	TopicTicketsExpired    = "ticket.expired"

	TopicInvoiceSettled = "lightning.invoice.settled"
)

const (
	HeaderTimestamp = "timestamp"
	HeaderEventType = "event_type"
)
