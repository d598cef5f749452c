package models

import "time"

type DailySales struct {
	Date        string `json:"date"`
	Count       int64  `json:"count"`
	RevenueSats int64  `json:"revenue_sats"`
}

type DailyCheckIns struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// EventAnalytics summarizes sales and attendance for one event. Dates are
// UTC calendar days in ascending order.
type EventAnalytics struct {
	EventID              string          `json:"event_id"`
	TotalTickets         int64           `json:"total_tickets"`
	TicketsSold          int64           `json:"tickets_sold"`
	PaidTickets          int64           `json:"paid_tickets"`
	CheckedIn            int64           `json:"checked_in"`
	CheckInRate          float64         `json:"check_in_rate"`
	RevenueSats          int64           `json:"revenue_sats"`
	SalesByDate          []DailySales    `json:"sales_by_date"`
	CheckInsByDate       []DailyCheckIns `json:"check_ins_by_date"`
	CategoryDistribution []CategoryCount `json:"category_distribution"`
}

type VerifiedTicket struct {
	ID            string        `json:"id"`
	EventTitle    string        `json:"event_title"`
	EventDate     time.Time     `json:"event_date"`
	Status        TicketStatus  `json:"status"`
	InvoiceStatus InvoiceStatus `json:"invoice_status"`
	SeatNumber    string        `json:"seat_number,omitempty"`
}

// TicketVerification is the door-side answer to "is this ticket good".
// It never changes the ticket.
type TicketVerification struct {
	Valid  bool           `json:"valid"`
	Ticket VerifiedTicket `json:"ticket"`
}
