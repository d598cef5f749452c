package service

import (
	"context"
	"errors"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/metrics"
)

// ExpireStalePending deletes pending tickets older than the pending TTL.
// Invoices that settled without anyone confirming them are confirmed instead
// of deleted, so a late payment is never thrown away. Rows whose invoice
// could not be looked up are left for the next sweep. When
// ReleaseCapacityOnExpiry is set the deleted count is returned to the event.
func (s *ticketService) ExpireStalePending(ctx context.Context, eventID string) (*ExpireOutput, error) {
	cutoff := s.now().Add(-s.cfg.PendingTTL)
	out := &ExpireOutput{EventID: eventID}

	hashes, err := s.store.StalePendingInvoices(ctx, eventID, cutoff)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.ExpireStalePending: %v", err)
		return nil, storeErr(err)
	}

	var settled, unverified []string
	for _, h := range hashes {
		lk, err := s.lookupInvoice(ctx, h)
		if err != nil {
			if !errors.Is(err, ErrInvoiceNotFound) {
				s.l.Warnf(ctx, "service.ticketService.ExpireStalePending: %s: %v", h, err)
				unverified = append(unverified, h)
			}
			continue
		}
		if lk.Settled {
			settled = append(settled, h)
		}
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	confirmed := make(map[string]int64, len(settled))
	for _, h := range settled {
		n, err := uow.ConfirmPendingTickets(ctx, eventID, h)
		if err != nil {
			return nil, storeErr(err)
		}
		confirmed[h] = n
		out.Confirmed += n
	}

	out.Deleted, err = uow.DeleteStalePending(ctx, eventID, cutoff, unverified)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.ExpireStalePending: %v", err)
		return nil, storeErr(err)
	}

	out.Skipped = int64(len(unverified))

	if out.Deleted > 0 && s.cfg.ReleaseCapacityOnExpiry {
		if err := uow.ReleaseCapacity(ctx, eventID, out.Deleted); err != nil {
			return nil, storeErr(err)
		}
		out.CapacityReleased = true
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.ExpireStalePending: %v", err)
		return nil, storeErr(err)
	}

	for h, n := range confirmed {
		if n > 0 {
			s.afterConfirm(ctx, eventID, h, n)
		}
	}

	if out.Deleted > 0 {
		metrics.TicketsExpired.Add(float64(out.Deleted))

		if err := s.prod.PublishTicketsExpired(ctx, kafka.TicketsExpiredEvent{
			EventID:          eventID,
			ExpiredCount:     out.Deleted,
			CapacityReleased: out.CapacityReleased,
		}); err != nil {
			s.l.Errorf(ctx, "service.ticketService.ExpireStalePending: %v", err)
		}

		s.l.Infow(ctx, "stale pending tickets expired",
			"event_id", eventID,
			"deleted", out.Deleted,
			"capacity_released", out.CapacityReleased,
		)
	}

	return out, nil
}

// ReconcileSettlement confirms every pending purchase bound to a settled
// invoice. Settlements arrive at least once, so a repeat updates nothing.
func (s *ticketService) ReconcileSettlement(ctx context.Context, st models.Settlement) (int64, error) {
	metrics.SettlementsReceived.Inc()

	hash, err := parseHash(st.PaymentHash)
	if err != nil {
		return 0, err
	}

	eventIDs, err := s.store.PendingEventsForInvoice(ctx, hash)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.ReconcileSettlement: %v", err)
		return 0, storeErr(err)
	}

	var total int64
	for _, eventID := range eventIDs {
		n, err := s.confirm(ctx, eventID, hash)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				continue
			}
			return total, err
		}
		total += n
	}

	return total, nil
}
