package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	repository "github.com/vogiaan1904/ticketbottle-lightning/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

type chanSubscription struct {
	ch chan *models.PaymentUpdate
}

func (s chanSubscription) Updates() <-chan *models.PaymentUpdate { return s.ch }
func (s chanSubscription) Close() error                          { return nil }

type chanUpdates struct {
	ch chan *models.PaymentUpdate
}

func (u chanUpdates) Publish(ctx context.Context, upd *models.PaymentUpdate) error {
	select {
	case u.ch <- upd:
	default:
	}
	return nil
}

func (u chanUpdates) Subscribe(ctx context.Context, paymentHash string) (repository.PaymentUpdateSubscription, error) {
	return chanSubscription{ch: u.ch}, nil
}

func collect(t *testing.T, upds <-chan *models.PaymentUpdate, done <-chan error) ([]*models.PaymentUpdate, error) {
	t.Helper()

	var got []*models.PaymentUpdate
	for {
		select {
		case u := <-upds:
			got = append(got, u)
		case err := <-done:
			for {
				select {
				case u := <-upds:
					got = append(got, u)
				default:
					return got, err
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not finish")
			return nil, nil
		}
	}
}

func TestStreamPaymentStatus_PollsUntilPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	upds := make(chan *models.PaymentUpdate, 4)
	done := make(chan error, 1)
	go func() {
		done <- env.svc.StreamPaymentStatus(ctx, ev.ID, p.Invoice.PaymentHash, upds)
	}()

	first := <-upds
	assert.Equal(t, models.PaymentStatusPending, first.Status)

	env.oracle.settle(p.Invoice.PaymentHash, p.TotalSats)

	got, err := collect(t, upds, done)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.PaymentStatusPaid, got[0].Status)
	assert.Equal(t, int64(2), got[0].UpdatedCount)
}

func TestStreamPaymentStatus_TerminalImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	env.oracle.cancel(p.Invoice.PaymentHash)

	upds := make(chan *models.PaymentUpdate, 1)
	require.NoError(t, env.svc.StreamPaymentStatus(ctx, ev.ID, p.Invoice.PaymentHash, upds))
	assert.Equal(t, models.PaymentStatusExpired, (<-upds).Status)
}

func TestStreamPaymentStatus_ContextCancel(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(context.Background(), IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	upds := make(chan *models.PaymentUpdate, 8)
	err = env.svc.StreamPaymentStatus(ctx, ev.ID, p.Invoice.PaymentHash, upds)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamPaymentStatus_PushedUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.createEvent(t, 5, 1000)

	p, err := env.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	pushed := chanUpdates{ch: make(chan *models.PaymentUpdate, 4)}
	svc := NewTicketService(env.store, env.oracle, env.dec, env.prod, pushed, env.tokens, TicketServiceConfig{
		PendingTTL:         time.Hour,
		StreamPollInterval: time.Hour,
		Now:                env.clock.Now,
	}, logger.InitializeTestZapLogger())

	upds := make(chan *models.PaymentUpdate, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.StreamPaymentStatus(ctx, ev.ID, p.Invoice.PaymentHash, upds)
	}()
	require.Equal(t, models.PaymentStatusPending, (<-upds).Status)

	// Updates for another event sharing the hash are ignored.
	pushed.ch <- &models.PaymentUpdate{EventID: "other", PaymentHash: p.Invoice.PaymentHash, Status: models.PaymentStatusPaid}
	pushed.ch <- &models.PaymentUpdate{EventID: ev.ID, PaymentHash: p.Invoice.PaymentHash, Status: models.PaymentStatusPaid, UpdatedCount: 1}

	got, err := collect(t, upds, done)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.PaymentStatusPaid, got[0].Status)
}
