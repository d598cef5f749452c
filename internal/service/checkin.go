package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/metrics"
)

func (s *ticketService) CheckIn(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	t, err := s.checkInTx(ctx, uow, eventID, ticketID)
	if err != nil {
		metrics.TrackCheckIn(err)
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.CheckIn: %v", err)
		return nil, storeErr(err)
	}

	metrics.TrackCheckIn(nil)
	s.publishCheckedIn(ctx, t)

	return t, nil
}

// checkInTx applies the check-in rules to one ticket inside uow. MarkUsed is
// conditional, so of several concurrent callers exactly one succeeds and the
// rest get ErrAlreadyUsed.
func (s *ticketService) checkInTx(ctx context.Context, uow sqldb.UnitOfWork, eventID, ticketID string) (*models.Ticket, error) {
	t, err := uow.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		if errors.Is(err, sqldb.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		s.l.Errorf(ctx, "service.ticketService.checkInTx: %v", err)
		return nil, storeErr(err)
	}

	if t.IsUsed() {
		return nil, ErrAlreadyUsed
	}
	if !t.IsPaid() {
		return nil, ErrNotPaid
	}

	at := s.now()
	ok, err := uow.MarkUsed(ctx, eventID, ticketID, at)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.checkInTx: %v", err)
		return nil, storeErr(err)
	}
	if !ok {
		return nil, ErrAlreadyUsed
	}

	t.Status = models.TicketStatusUsed
	t.CheckedInAt = &at
	t.Version++
	return t, nil
}

func (s *ticketService) publishCheckedIn(ctx context.Context, t *models.Ticket) {
	if err := s.prod.PublishTicketCheckedIn(ctx, kafka.TicketCheckedInEvent{
		EventID:     t.EventID,
		TicketID:    t.ID,
		CheckedInAt: *t.CheckedInAt,
	}); err != nil {
		s.l.Errorf(ctx, "service.ticketService.publishCheckedIn: %v", err)
	}

	s.l.Infow(ctx, "ticket checked in", "event_id", t.EventID, "ticket_id", t.ID)
}

func (s *ticketService) CheckInWithToken(ctx context.Context, token string) (*models.Ticket, error) {
	eventID, ticketID, err := s.tokens.Parse(token)
	if err != nil {
		s.l.Warnf(ctx, "service.ticketService.CheckInWithToken: %v", err)
		return nil, ErrTokenInvalid
	}

	return s.CheckIn(ctx, eventID, ticketID)
}

func (s *ticketService) IssueTicketToken(ctx context.Context, eventID, ticketID string) (*TicketTokenOutput, error) {
	t, err := s.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, err
	}

	if t.IsUsed() {
		return nil, ErrAlreadyUsed
	}
	if !t.IsPaid() {
		return nil, ErrNotPaid
	}

	token, expAt, err := s.tokens.Issue(t.EventID, t.ID)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.IssueTicketToken: %v", err)
		return nil, err
	}

	return &TicketTokenOutput{
		TicketID:  t.ID,
		Token:     token,
		ExpiresAt: expAt,
	}, nil
}

// BulkCheckIn runs every item in its own savepoint of one transaction. A
// failing item rolls back to its savepoint and never undoes another item.
func (s *ticketService) BulkCheckIn(ctx context.Context, eventID string, ticketIDs []string) (*BulkOutput, error) {
	out := &BulkOutput{Results: make([]BulkItemResult, 0, len(ticketIDs))}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	var checkedIn []*models.Ticket
	for i, id := range ticketIDs {
		t, err := s.inSavepoint(ctx, uow, i, func() (*models.Ticket, error) {
			return s.checkInTx(ctx, uow, eventID, id)
		})
		if err != nil && isInfraErr(err) {
			s.l.Errorf(ctx, "service.ticketService.BulkCheckIn: %v", err)
			return nil, err
		}

		metrics.TrackCheckIn(err)
		if err == nil {
			checkedIn = append(checkedIn, t)
		}
		out.add(BulkItemResult{TicketID: id, Err: err, Ticket: t})
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.BulkCheckIn: %v", err)
		return nil, storeErr(err)
	}

	for _, t := range checkedIn {
		s.publishCheckedIn(ctx, t)
	}

	return out, nil
}

func (s *ticketService) inSavepoint(
	ctx context.Context,
	uow sqldb.UnitOfWork,
	i int,
	fn func() (*models.Ticket, error),
) (*models.Ticket, error) {
	sp := fmt.Sprintf("item_%d", i)
	if err := uow.Savepoint(ctx, sp); err != nil {
		return nil, storeErr(err)
	}

	t, err := fn()
	if err != nil {
		if rbErr := uow.RollbackToSavepoint(ctx, sp); rbErr != nil {
			return nil, storeErr(rbErr)
		}
		return nil, err
	}

	if err := uow.ReleaseSavepoint(ctx, sp); err != nil {
		return nil, storeErr(err)
	}

	return t, nil
}
