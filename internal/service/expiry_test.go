package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

func TestExpireStalePending_ReleasesCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 2, 1000)

	_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	out, err := env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Deleted)

	env.clock.Advance(61 * time.Minute)

	out, err = env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Deleted)
	assert.True(t, out.CapacityReleased)
	assert.Equal(t, int64(0), env.sold(t, ev.ID))
	require.Len(t, env.prod.expired, 1)

	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	assert.NoError(t, err)
}

func TestExpireStalePending_KeepsCounterWhenReleaseDisabled(t *testing.T) {
	env := newTestEnv(t, withoutCapacityRelease())
	ctx := context.Background()
	ev := env.createEvent(t, 2, 1000)

	_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)

	out, err := env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Deleted)
	assert.False(t, out.CapacityReleased)

	// The deleted tickets keep consuming capacity in this mode.
	assert.Equal(t, int64(2), env.sold(t, ev.ID))
	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestExpireStalePending_KeepsRowsWhenLookupFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	paid, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	env.oracle.settle(paid.Invoice.PaymentHash, paid.TotalSats)
	env.clock.Advance(2 * time.Hour)
	env.oracle.lookupErr = lightning.ErrOracleUnavailable

	out, err := env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Deleted)
	assert.Equal(t, int64(0), out.Confirmed)
	assert.Equal(t, int64(2), out.Skipped)
	assert.Equal(t, int64(3), env.sold(t, ev.ID))
	assert.Empty(t, env.prod.expired)

	env.oracle.lookupErr = nil

	check, err := env.svc.ConfirmBulkPayment(ctx, ev.ID, paid.Invoice.PaymentHash)
	require.NoError(t, err)
	assert.Equal(t, int64(2), check.UpdatedCount)

	out, err = env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Deleted)
	assert.Equal(t, int64(0), out.Skipped)
	assert.Equal(t, int64(2), env.sold(t, ev.ID))
}

func TestExpireStalePending_DeletesUnknownInvoices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	env.oracle.mu.Lock()
	delete(env.oracle.invoices, p.Invoice.PaymentHash)
	env.oracle.mu.Unlock()
	env.clock.Advance(2 * time.Hour)

	out, err := env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Deleted)
	assert.Equal(t, int64(0), out.Skipped)
}

func TestExpireStalePending_ConfirmsLateSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	paid, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	env.oracle.settle(paid.Invoice.PaymentHash, paid.TotalSats)
	env.clock.Advance(2 * time.Hour)

	out, err := env.svc.ExpireStalePending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Confirmed)
	assert.Equal(t, int64(1), out.Deleted)
	assert.Equal(t, int64(2), env.sold(t, ev.ID))

	valid, err := env.store.ListTickets(ctx, ev.ID, sqldb.TicketFilter{Status: models.TicketStatusValid})
	require.NoError(t, err)
	assert.Len(t, valid, 2)
}

func TestListTickets_ExpiresFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 3, 1000)

	_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 3})
	require.NoError(t, err)
	env.clock.Advance(90 * time.Minute)

	tickets, err := env.svc.ListTickets(ctx, ListTicketsInput{EventID: ev.ID})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Equal(t, int64(0), env.sold(t, ev.ID))
}

func TestExpiryProcessor_SweepOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createEvent(t, 5, 1000)
	b := env.createEvent(t, 5, 1000)

	for _, ev := range []string{a.ID, b.ID} {
		_, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev, Quantity: 2})
		require.NoError(t, err)
	}

	proc := NewExpiryProcessor(env.store, env.svc, logger.InitializeTestZapLogger(), config.TicketConfig{
		PendingTTL:     time.Hour,
		ExpiryInterval: time.Hour,
	}).(*expiryProcessor)
	proc.now = env.clock.Now

	n, err := proc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	env.clock.Advance(2 * time.Hour)

	n, err = proc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	st := proc.GetStatus()
	assert.Equal(t, int64(4), st.TotalExpired)
	assert.False(t, st.IsRunning)
	assert.False(t, st.LastProcessed.IsZero())
}

func TestExpiryProcessor_StartStop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	proc := NewExpiryProcessor(env.store, env.svc, logger.InitializeTestZapLogger(), config.TicketConfig{
		PendingTTL:     time.Hour,
		ExpiryInterval: 5 * time.Millisecond,
	})

	require.NoError(t, proc.Start(ctx))
	assert.Error(t, proc.Start(ctx))
	assert.True(t, proc.GetStatus().IsRunning)

	assert.Eventually(t, func() bool {
		return !proc.GetStatus().LastProcessed.IsZero()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, proc.Stop())
	assert.False(t, proc.GetStatus().IsRunning)
	assert.Error(t, proc.Stop())
}
