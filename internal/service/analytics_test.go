package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

func TestEventAnalytics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 10, 1000)
	day1 := env.clock.Now().Format(dayLayout)

	_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2, Category: "VIP"})
	require.NoError(t, err)

	a := env.validTicket(t, ev.ID)
	env.validTicket(t, ev.ID)
	_, err = env.svc.CheckIn(ctx, ev.ID, a.ID)
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	day2 := env.clock.Now().Format(dayLayout)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1, Category: "VIP"})
	require.NoError(t, err)
	env.oracle.settle(p.Invoice.PaymentHash, p.TotalSats)
	_, err = env.svc.ConfirmBulkPayment(ctx, ev.ID, p.Invoice.PaymentHash)
	require.NoError(t, err)

	got, err := env.svc.EventAnalytics(ctx, ev.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.TotalTickets)
	assert.Equal(t, int64(5), got.TicketsSold)
	assert.Equal(t, int64(3), got.PaidTickets)
	assert.Equal(t, int64(1), got.CheckedIn)
	assert.InDelta(t, 33.33, got.CheckInRate, 0.01)
	assert.Equal(t, int64(3000), got.RevenueSats)
	assert.Equal(t, []models.DailySales{
		{Date: day1, Count: 4, RevenueSats: 2000},
		{Date: day2, Count: 1, RevenueSats: 1000},
	}, got.SalesByDate)
	assert.Equal(t, []models.DailyCheckIns{{Date: day1, Count: 1}}, got.CheckInsByDate)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Uncategorized", Count: 2},
		{Category: "VIP", Count: 1},
	}, got.CategoryDistribution)
}

func TestEventAnalytics_Empty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 3, 1000)

	got, err := env.svc.EventAnalytics(ctx, ev.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CheckInRate)
	assert.Zero(t, got.RevenueSats)
	assert.Empty(t, got.SalesByDate)
	assert.Empty(t, got.CategoryDistribution)

	_, err = env.svc.EventAnalytics(ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestVerifyTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	tkt := env.validTicket(t, ev.ID)

	v, err := env.svc.VerifyTicket(ctx, ev.ID, tkt.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, tkt.ID, v.Ticket.ID)
	assert.Equal(t, "Bitcoin Meetup", v.Ticket.EventTitle)
	assert.True(t, ev.Date.Equal(v.Ticket.EventDate))
	assert.Equal(t, models.TicketStatusValid, v.Ticket.Status)
	assert.Equal(t, models.InvoiceStatusPaid, v.Ticket.InvoiceStatus)

	// Verifying never admits.
	again, err := env.svc.GetTicket(ctx, ev.ID, tkt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusValid, again.Status)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.VerifyTicket(ctx, ev.ID, p.Tickets[0].ID)
	assert.ErrorIs(t, err, ErrNotPaid)

	_, err = env.svc.VerifyTicket(ctx, ev.ID, "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	_, err = env.svc.VerifyTicket(ctx, "missing", tkt.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
