package models

import "time"

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	TicketPrice int64     `json:"ticket_price"`
	TicketCount int64     `json:"ticket_count"`
	TicketsSold int64     `json:"tickets_sold"`
	CreatedAt   time.Time `json:"created_at"`
}

// Available returns the number of tickets that can still be reserved.
func (e *Event) Available() int64 {
	if e.TicketsSold >= e.TicketCount {
		return 0
	}
	return e.TicketCount - e.TicketsSold
}

func (e *Event) IsSoldOut() bool {
	return e.Available() == 0
}
