package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

var ErrPaymentExpired = errors.New("payment expired")

type PaymentBackend interface {
	CheckPaymentStatus(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error)
}

type PaymentPoller struct {
	backend   PaymentBackend
	interval  time.Duration
	newTicker TickerFactory
	l         logger.Logger
}

func NewPaymentPoller(backend PaymentBackend, interval time.Duration, l logger.Logger) *PaymentPoller {
	if interval <= 0 {
		interval = DefaultPaymentInterval
	}
	return &PaymentPoller{
		backend:   backend,
		interval:  interval,
		newTicker: NewTimeTicker,
		l:         l,
	}
}

// Wait polls a bulk purchase until it is paid. It returns ErrPaymentExpired
// when the invoice can no longer be paid.
func (p *PaymentPoller) Wait(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error) {
	var last *models.PaymentCheck

	err := Poll(ctx, p.interval, p.newTicker, func(ctx context.Context) (bool, error) {
		pc, err := p.backend.CheckPaymentStatus(ctx, eventID, paymentHash)
		if err != nil {
			if permanent(err) {
				return false, err
			}
			p.l.Warnf(ctx, "reconcile.PaymentPoller.Wait: %v", err)
			return false, nil
		}

		last = pc
		switch pc.Status {
		case models.PaymentStatusPaid:
			return true, nil
		case models.PaymentStatusExpired:
			return false, ErrPaymentExpired
		default:
			return false, nil
		}
	})
	if err != nil {
		return last, err
	}

	p.l.Infow(ctx, "payment confirmed",
		"event_id", eventID,
		"payment_hash", paymentHash,
		"updated", last.UpdatedCount,
	)

	return last, nil
}
