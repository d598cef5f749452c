package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

func (s *ticketService) StreamPaymentStatus(ctx context.Context, eventID, paymentHash string, upds chan<- *models.PaymentUpdate) error {
	pc, err := s.CheckPaymentStatus(ctx, eventID, paymentHash)
	if err != nil {
		return err
	}

	last := pc.Status
	if err := send(ctx, upds, toUpdate(pc)); err != nil {
		return err
	}
	if last.IsTerminal() {
		return nil
	}

	// Pub/Sub delivers confirmations made by any instance. The ticker keeps
	// the stream moving when nobody else is polling the node.
	var pushed <-chan *models.PaymentUpdate
	if s.updates != nil {
		sub, err := s.updates.Subscribe(ctx, pc.PaymentHash)
		if err != nil {
			s.l.Warnf(ctx, "service.ticketService.StreamPaymentStatus: %v", err)
		} else {
			defer sub.Close()
			pushed = sub.Updates()
		}
	}

	ticker := time.NewTicker(s.cfg.StreamPollInterval)
	defer ticker.Stop()

	s.l.Debugw(ctx, "payment stream opened", "event_id", eventID, "payment_hash", pc.PaymentHash)

	for {
		var upd *models.PaymentUpdate

		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, ok := <-pushed:
			if !ok {
				pushed = nil
				continue
			}
			if u.EventID != eventID {
				continue
			}
			upd = u

		case <-ticker.C:
			cur, err := s.CheckPaymentStatus(ctx, eventID, pc.PaymentHash)
			if err != nil {
				s.l.Warnf(ctx, "service.ticketService.StreamPaymentStatus: %v", err)
				continue
			}
			upd = toUpdate(cur)
		}

		if upd.Status == last {
			continue
		}
		last = upd.Status

		if err := send(ctx, upds, upd); err != nil {
			return err
		}
		if last.IsTerminal() {
			return nil
		}
	}
}

func toUpdate(pc *models.PaymentCheck) *models.PaymentUpdate {
	return &models.PaymentUpdate{
		EventID:      pc.EventID,
		PaymentHash:  pc.PaymentHash,
		Status:       pc.Status,
		UpdatedCount: pc.UpdatedCount,
		Timestamp:    pc.CheckedAt,
	}
}

func send(ctx context.Context, upds chan<- *models.PaymentUpdate, u *models.PaymentUpdate) error {
	select {
	case upds <- u:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("payment stream closed: %w", ctx.Err())
	}
}
