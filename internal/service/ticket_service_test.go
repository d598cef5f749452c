package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
)

func TestIssueBulkPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 3, OwnerEmail: "bob@example.com"})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), p.TotalSats)
	assert.Equal(t, "0.00003", p.TotalBTC)
	assert.Equal(t, "3 x Bitcoin Meetup (0.00003 BTC)", p.Invoice.Memo)
	require.Len(t, p.Tickets, 3)
	for _, tkt := range p.Tickets {
		assert.Equal(t, models.TicketStatusPending, tkt.Status)
		assert.Equal(t, models.InvoiceStatusPending, tkt.InvoiceStatus)
		assert.Equal(t, p.Invoice.PaymentHash, tkt.InvoiceID)
		assert.Equal(t, "bob@example.com", tkt.OwnerEmail)
	}
	assert.Equal(t, int64(3), env.sold(t, ev.ID))

	require.Len(t, env.prod.reserved, 1)
	assert.Len(t, env.prod.reserved[0].TicketIDs, 3)
}

func TestIssueBulkPurchase_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 2, 1000)

	_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 3})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, env.oracle.creates)
	assert.Equal(t, int64(0), env.sold(t, ev.ID))
}

func TestIssueBulkPurchase_OracleFailureLeavesNoRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	env.oracle.createErr = lightning.ErrOracleUnavailable

	_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	assert.Equal(t, int64(0), env.sold(t, ev.ID))
	tickets, err := env.store.ListTickets(ctx, ev.ID, sqldb.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Empty(t, env.prod.reserved)
}

func TestIssueBulkPurchase_SeatNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{
		EventID:     ev.ID,
		Quantity:    3,
		SeatNumbers: []string{"A1", "A2"},
	})
	require.NoError(t, err)
	require.Len(t, p.Tickets, 3)
	assert.Equal(t, "A1", p.Tickets[0].SeatNumber)
	assert.Equal(t, "A2", p.Tickets[1].SeatNumber)
	assert.Empty(t, p.Tickets[2].SeatNumber)

	stored, err := env.svc.GetTicket(ctx, ev.ID, p.Tickets[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "A2", stored.SeatNumber)

	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{
		EventID:     ev.ID,
		Quantity:    1,
		SeatNumbers: []string{"B1", "B2"},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, int64(3), env.sold(t, ev.ID))
}

func TestIssueBulkPurchase_SlowNodeDoesNotHoldStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)
	other := env.createEvent(t, 5, 1000)
	tkt := env.validTicket(t, other.ID)

	env.oracle.hold = make(chan struct{})
	env.oracle.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
		done <- err
	}()
	<-env.oracle.entered

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	got, err := env.svc.CheckIn(cctx, other.ID, tkt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, got.Status)

	close(env.oracle.hold)
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), env.sold(t, ev.ID))
}

func TestIssueBulkPurchase_CapacityUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 10, 500)

	const buyers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		issued   int64
		rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(qty int64) {
			defer wg.Done()
			p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: qty})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				issued += int64(len(p.Tickets))
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i%3 + 1))
	}
	wg.Wait()

	sold := env.sold(t, ev.ID)
	assert.LessOrEqual(t, sold, int64(10))
	assert.Equal(t, issued, sold)
	assert.Positive(t, rejected)

	tickets, err := env.store.ListTickets(ctx, ev.ID, sqldb.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, tickets, int(sold))
}

func TestSingleTicketEventScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 1, 2100)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.sold(t, ev.ID))

	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	hash := p.Invoice.PaymentHash
	_, err = env.svc.ConfirmBulkPayment(ctx, ev.ID, hash)
	assert.ErrorIs(t, err, ErrInvoiceNotPaid)

	env.oracle.settle(hash, 2100)

	pc, err := env.svc.ConfirmBulkPayment(ctx, ev.ID, hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pc.UpdatedCount)
	assert.Equal(t, models.PaymentStatusPaid, pc.Status)

	tkt, err := env.svc.GetTicket(ctx, ev.ID, p.Tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusValid, tkt.Status)
	assert.Equal(t, models.InvoiceStatusPaid, tkt.InvoiceStatus)

	pc, err = env.svc.ConfirmBulkPayment(ctx, ev.ID, hash)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pc.UpdatedCount)
	assert.Len(t, env.prod.confirmed, 1)
}

func TestClaimSingleTicket_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)
	hash := env.oracle.external(1000, true)

	first, err := env.svc.ClaimSingleTicket(ctx, ev.ID, hash)
	require.NoError(t, err)
	assert.False(t, first.AlreadyClaimed)
	assert.Equal(t, models.TicketStatusValid, first.Ticket.Status)
	assert.Equal(t, models.InvoiceStatusPaid, first.Ticket.InvoiceStatus)
	assert.Equal(t, models.TicketSourceClaim, first.Ticket.Source)

	second, err := env.svc.ClaimSingleTicket(ctx, ev.ID, hash)
	require.NoError(t, err)
	assert.True(t, second.AlreadyClaimed)
	assert.Equal(t, first.Ticket.ID, second.Ticket.ID)

	assert.Equal(t, int64(1), env.sold(t, ev.ID))
	assert.Len(t, env.prod.claimed, 1)
}

func TestClaimSingleTicket_OneClaimAcrossEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createEvent(t, 5, 1000)
	b := env.createEvent(t, 5, 1000)
	hash := env.oracle.external(1000, true)

	first, err := env.svc.ClaimSingleTicket(ctx, a.ID, hash)
	require.NoError(t, err)
	assert.False(t, first.AlreadyClaimed)

	_, err = env.svc.ClaimSingleTicket(ctx, b.ID, hash)
	assert.ErrorIs(t, err, ErrInvoiceAlreadyUsed)
	assert.Equal(t, int64(0), env.sold(t, b.ID))

	again, err := env.svc.ClaimSingleTicket(ctx, a.ID, hash)
	require.NoError(t, err)
	assert.True(t, again.AlreadyClaimed)
	assert.Equal(t, first.Ticket.ID, again.Ticket.ID)
	assert.Equal(t, int64(1), env.sold(t, a.ID))
	assert.Len(t, env.prod.claimed, 1)
}

func TestClaimSingleTicket_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)
	hash := env.oracle.external(1000, true)

	const callers = 10
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.svc.ClaimSingleTicket(ctx, ev.ID, hash)
			if assert.NoError(t, err) {
				ids[i] = res.Ticket.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(1), env.sold(t, ev.ID))
}

func TestClaimSingleTicket_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 1, 1000)

	_, err := env.svc.ClaimSingleTicket(ctx, ev.ID, "zz")
	assert.ErrorIs(t, err, ErrInvalidPaymentHash)

	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, env.oracle.external(1000, false))
	assert.ErrorIs(t, err, ErrInvoicePending)

	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, "00"+env.oracle.external(1000, true)[2:])
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, env.oracle.external(999, true))
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	_, err = env.svc.ClaimSingleTicket(ctx, "missing", env.oracle.external(1000, true))
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, env.oracle.external(1000, true))
	require.NoError(t, err)

	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, env.oracle.external(1000, true))
	assert.ErrorIs(t, err, ErrNoTicketsAvailable)
	assert.Equal(t, int64(1), env.sold(t, ev.ID))

	env.oracle.lookupErr = lightning.ErrOracleUnavailable
	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, env.oracle.external(1000, true))
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestClaimSingleTicket_RejectsPurchaseInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)
	env.oracle.settle(p.Invoice.PaymentHash, p.TotalSats)

	_, err = env.svc.ClaimSingleTicket(ctx, ev.ID, p.Invoice.PaymentHash)
	assert.ErrorIs(t, err, ErrInvoiceAlreadyUsed)
	assert.Equal(t, int64(2), env.sold(t, ev.ID))
}

func TestClaimWithPaymentRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)
	hash := env.oracle.external(1000, true)
	env.dec.known["lnbcrt10u1claim"] = &models.DecodedInvoice{PaymentHash: hash, AmountSats: 1000}

	res, err := env.svc.ClaimWithPaymentRequest(ctx, ev.ID, "lnbcrt10u1claim")
	require.NoError(t, err)
	assert.Equal(t, hash, res.Ticket.InvoiceID)

	_, err = env.svc.ClaimWithPaymentRequest(ctx, ev.ID, "lnbc-garbage")
	assert.ErrorIs(t, err, ErrInvalidPaymentRequest)
}

func TestCheckPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 10, 1000)

	open, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	pc, err := env.svc.CheckPaymentStatus(ctx, ev.ID, open.Invoice.PaymentHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, pc.Status)

	env.oracle.settle(open.Invoice.PaymentHash, open.TotalSats)
	pc, err = env.svc.CheckPaymentStatus(ctx, ev.ID, open.Invoice.PaymentHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, pc.Status)
	assert.Equal(t, int64(2), pc.UpdatedCount)

	canceled, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	env.oracle.cancel(canceled.Invoice.PaymentHash)

	pc, err = env.svc.CheckPaymentStatus(ctx, ev.ID, canceled.Invoice.PaymentHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusExpired, pc.Status)

	tkt, err := env.svc.GetTicket(ctx, ev.ID, canceled.Tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusPending, tkt.Status)
	assert.Equal(t, models.InvoiceStatusExpired, tkt.InvoiceStatus)

	pc, err = env.svc.CheckPaymentStatus(ctx, ev.ID, "ff"+canceled.Invoice.PaymentHash[2:])
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusExpired, pc.Status)
}

func TestGetInvoiceStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hash := env.oracle.external(1500, true)
	lk, err := env.svc.GetInvoiceStatus(ctx, hash)
	require.NoError(t, err)
	assert.True(t, lk.Settled)
	assert.Equal(t, models.InvoiceStateSettled, lk.State)

	_, err = env.svc.GetInvoiceStatus(ctx, "not-hex")
	assert.ErrorIs(t, err, ErrInvalidPaymentHash)
}

func TestReconcileSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 10, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 3})
	require.NoError(t, err)

	st := models.Settlement{PaymentHash: p.Invoice.PaymentHash, AmountPaidSats: p.TotalSats}

	n, err := env.svc.ReconcileSettlement(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Redelivery of the same settlement.
	n, err = env.svc.ReconcileSettlement(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	valid, err := env.svc.ListTickets(ctx, ListTicketsInput{EventID: ev.ID, Status: models.TicketStatusValid})
	require.NoError(t, err)
	assert.Len(t, valid, 3)
}

func TestListTickets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 10, 1000)

	_, err := env.svc.ListTickets(ctx, ListTicketsInput{EventID: "missing"})
	assert.ErrorIs(t, err, ErrEventNotFound)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)
	env.validTicket(t, ev.ID)

	byHash, err := env.svc.ListTickets(ctx, ListTicketsInput{EventID: ev.ID, PaymentHash: p.Invoice.PaymentHash})
	require.NoError(t, err)
	assert.Len(t, byHash, 2)

	pending, err := env.svc.ListTickets(ctx, ListTicketsInput{EventID: ev.ID, Status: models.TicketStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
