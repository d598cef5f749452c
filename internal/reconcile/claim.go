package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

const (
	DefaultClaimInterval   = 3 * time.Second
	DefaultPaymentInterval = 5 * time.Second
)

var ErrInvoiceCanceled = errors.New("invoice canceled")

// ClaimBackend is what the claim flow needs from the ticket service. Both
// the in-process service and the HTTP client implement it.
type ClaimBackend interface {
	DecodeInvoice(ctx context.Context, paymentRequest string) (*models.DecodedInvoice, error)
	GetInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error)
	ClaimSingleTicket(ctx context.Context, eventID, paymentHash string) (*models.ClaimResult, error)
}

type ClaimPoller struct {
	backend   ClaimBackend
	interval  time.Duration
	newTicker TickerFactory
	l         logger.Logger
}

func NewClaimPoller(backend ClaimBackend, interval time.Duration, l logger.Logger) *ClaimPoller {
	if interval <= 0 {
		interval = DefaultClaimInterval
	}
	return &ClaimPoller{
		backend:   backend,
		interval:  interval,
		newTicker: NewTimeTicker,
		l:         l,
	}
}

// Claim waits for the invoice behind paymentRequest to be paid and then
// claims one ticket with it. The request is decoded once; a bad request
// fails before any polling. A canceled invoice stops the wait with
// ErrInvoiceCanceled.
func (p *ClaimPoller) Claim(ctx context.Context, eventID, paymentRequest string) (*models.ClaimResult, error) {
	dec, err := p.backend.DecodeInvoice(ctx, paymentRequest)
	if err != nil {
		return nil, fmt.Errorf("decode payment request: %w", err)
	}

	p.l.Infow(ctx, "waiting for invoice payment",
		"event_id", eventID,
		"payment_hash", dec.PaymentHash,
		"amount_sats", dec.AmountSats,
	)

	err = Poll(ctx, p.interval, p.newTicker, func(ctx context.Context) (bool, error) {
		lk, err := p.backend.GetInvoiceStatus(ctx, dec.PaymentHash)
		if err != nil {
			if permanent(err) {
				return false, err
			}
			p.l.Warnf(ctx, "reconcile.ClaimPoller.Claim: %v", err)
			return false, nil
		}
		if lk.State == models.InvoiceStateCanceled {
			return false, ErrInvoiceCanceled
		}
		return lk.Settled, nil
	})
	if err != nil {
		return nil, err
	}

	res, err := p.backend.ClaimSingleTicket(ctx, eventID, dec.PaymentHash)
	if err != nil {
		return nil, fmt.Errorf("claim ticket: %w", err)
	}

	return res, nil
}
