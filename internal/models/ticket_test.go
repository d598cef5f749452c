package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusPending, TicketStatusValid, true},
		{TicketStatusValid, TicketStatusUsed, true},
		{TicketStatusPending, TicketStatusUsed, false},
		{TicketStatusValid, TicketStatusPending, false},
		{TicketStatusUsed, TicketStatusValid, false},
		{TicketStatusUsed, TicketStatusPending, false},
		{TicketStatusUsed, TicketStatusUsed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTicket_CanCheckIn(t *testing.T) {
	paid := &Ticket{Status: TicketStatusValid, InvoiceStatus: InvoiceStatusPaid}
	assert.True(t, paid.CanCheckIn())
	assert.True(t, paid.CanTransfer())

	used := &Ticket{Status: TicketStatusUsed, InvoiceStatus: InvoiceStatusPaid}
	assert.False(t, used.CanCheckIn())
	assert.False(t, used.CanTransfer())

	unpaid := &Ticket{Status: TicketStatusPending, InvoiceStatus: InvoiceStatusPending}
	assert.False(t, unpaid.CanCheckIn())
	assert.False(t, unpaid.CanTransfer())
}

func TestTicket_IsStalePending(t *testing.T) {
	now := time.Now()
	old := &Ticket{Status: TicketStatusPending, CreatedAt: now.Add(-2 * time.Hour)}
	fresh := &Ticket{Status: TicketStatusPending, CreatedAt: now}
	paid := &Ticket{Status: TicketStatusValid, CreatedAt: now.Add(-2 * time.Hour)}

	cutoff := now.Add(-time.Hour)
	assert.True(t, old.IsStalePending(cutoff))
	assert.False(t, fresh.IsStalePending(cutoff))
	assert.False(t, paid.IsStalePending(cutoff))
}

func TestEvent_Available(t *testing.T) {
	ev := &Event{TicketCount: 3, TicketsSold: 1}
	assert.Equal(t, int64(2), ev.Available())
	assert.False(t, ev.IsSoldOut())

	ev.TicketsSold = 3
	assert.Equal(t, int64(0), ev.Available())
	assert.True(t, ev.IsSoldOut())
}
