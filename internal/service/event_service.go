package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

type EventService interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	// DeleteEvent removes the event together with all of its tickets.
	DeleteEvent(ctx context.Context, eventID string) error
}

type eventService struct {
	store sqldb.Store
	v     *validator.Validate
	l     logger.Logger
	now   func() time.Time
}

func NewEventService(store sqldb.Store, l logger.Logger) EventService {
	return &eventService{
		store: store,
		v:     validator.New(),
		l:     l,
		now:   time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.v.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	ev := &models.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date.UTC(),
		TicketPrice: in.TicketPrice,
		TicketCount: in.TicketCount,
		CreatedAt:   s.now().UTC(),
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	if err := uow.CreateEvent(ctx, ev); err != nil {
		s.l.Errorf(ctx, "service.eventService.CreateEvent: %v", err)
		return nil, storeErr(err)
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.eventService.CreateEvent: %v", err)
		return nil, storeErr(err)
	}

	s.l.Infow(ctx, "event created", "event_id", ev.ID, "ticket_count", ev.TicketCount, "ticket_price", ev.TicketPrice)

	return ev, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		s.l.Errorf(ctx, "service.eventService.GetEvent: %v", err)
		return nil, storeErr(err)
	}

	return ev, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	evs, err := s.store.ListEvents(ctx)
	if err != nil {
		s.l.Errorf(ctx, "service.eventService.ListEvents: %v", err)
		return nil, storeErr(err)
	}

	return evs, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID string) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer uow.Rollback()

	if err := uow.DeleteEvent(ctx, eventID); err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return ErrEventNotFound
		}
		s.l.Errorf(ctx, "service.eventService.DeleteEvent: %v", err)
		return storeErr(err)
	}

	if err := uow.Commit(); err != nil {
		return storeErr(err)
	}

	s.l.Infow(ctx, "event deleted", "event_id", eventID)
	return nil
}
