package service

import (
	"context"
	"errors"
	"strings"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/metrics"
)

func (s *ticketService) BulkTransfer(ctx context.Context, eventID string, items []TransferItem) (*BulkOutput, error) {
	out := &BulkOutput{Results: make([]BulkItemResult, 0, len(items))}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	var moved []kafka.TicketTransferredEvent
	for i, it := range items {
		var from string
		t, err := s.inSavepoint(ctx, uow, i, func() (*models.Ticket, error) {
			t, err := s.transferTx(ctx, uow, eventID, it)
			if t != nil && len(t.TransferHistory) > 0 {
				from = t.TransferHistory[len(t.TransferHistory)-1].FromEmail
			}
			return t, err
		})
		if err != nil && isInfraErr(err) {
			s.l.Errorf(ctx, "service.ticketService.BulkTransfer: %v", err)
			return nil, err
		}

		metrics.TrackTransfer(err)
		if err == nil {
			moved = append(moved, kafka.TicketTransferredEvent{
				EventID:   eventID,
				TicketID:  t.ID,
				FromEmail: from,
				ToEmail:   t.OwnerEmail,
			})
		}
		out.add(BulkItemResult{TicketID: it.TicketID, Err: err, Ticket: t})
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.BulkTransfer: %v", err)
		return nil, storeErr(err)
	}

	for _, e := range moved {
		if err := s.prod.PublishTicketTransferred(ctx, e); err != nil {
			s.l.Errorf(ctx, "service.ticketService.BulkTransfer: %v", err)
		}
	}

	s.l.Infow(ctx, "bulk transfer done",
		"event_id", eventID,
		"total", out.Summary.Total,
		"successful", out.Summary.Successful,
	)

	return out, nil
}

func (s *ticketService) transferTx(ctx context.Context, uow sqldb.UnitOfWork, eventID string, it TransferItem) (*models.Ticket, error) {
	email := strings.TrimSpace(it.NewOwnerEmail)
	if err := s.v.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	t, err := uow.GetTicket(ctx, eventID, it.TicketID)
	if err != nil {
		if errors.Is(err, sqldb.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, storeErr(err)
	}

	if t.IsUsed() {
		return nil, ErrCannotTransferUsed
	}
	if !t.IsPaid() {
		return nil, ErrCannotTransferUnpaid
	}

	ok, err := uow.TransferTicket(ctx, t, models.TransferRecord{
		FromEmail:     t.OwnerEmail,
		ToEmail:       email,
		TransferredAt: s.now(),
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		return nil, ErrTransferConflict
	}

	return t, nil
}
