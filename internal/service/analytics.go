package service

import (
	"context"
	"errors"
	"sort"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
)

const (
	dayLayout         = "2006-01-02"
	uncategorizedName = "Uncategorized"
)

// EventAnalytics aggregates the event's tickets. Revenue counts paid tickets
// at the current ticket price.
func (s *ticketService) EventAnalytics(ctx context.Context, eventID string) (*models.EventAnalytics, error) {
	ev, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	tickets, err := s.store.ListTickets(ctx, eventID, sqldb.TicketFilter{})
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.EventAnalytics: %v", err)
		return nil, storeErr(err)
	}

	out := &models.EventAnalytics{
		EventID:      ev.ID,
		TotalTickets: ev.TicketCount,
		TicketsSold:  ev.TicketsSold,
	}

	sales := map[string]*models.DailySales{}
	checkIns := map[string]*models.DailyCheckIns{}
	categories := map[string]int64{}

	for _, t := range tickets {
		day := t.CreatedAt.UTC().Format(dayLayout)
		ds, ok := sales[day]
		if !ok {
			ds = &models.DailySales{Date: day}
			sales[day] = ds
		}
		ds.Count++

		if t.IsPaid() {
			out.PaidTickets++
			out.RevenueSats += ev.TicketPrice
			ds.RevenueSats += ev.TicketPrice

			cat := t.Category
			if cat == "" {
				cat = uncategorizedName
			}
			categories[cat]++
		}

		if t.IsUsed() {
			out.CheckedIn++
			if t.CheckedInAt != nil {
				cday := t.CheckedInAt.UTC().Format(dayLayout)
				dc, ok := checkIns[cday]
				if !ok {
					dc = &models.DailyCheckIns{Date: cday}
					checkIns[cday] = dc
				}
				dc.Count++
			}
		}
	}

	if out.PaidTickets > 0 {
		out.CheckInRate = float64(out.CheckedIn) / float64(out.PaidTickets) * 100
	}

	out.SalesByDate = make([]models.DailySales, 0, len(sales))
	for _, ds := range sales {
		out.SalesByDate = append(out.SalesByDate, *ds)
	}
	sort.Slice(out.SalesByDate, func(i, j int) bool { return out.SalesByDate[i].Date < out.SalesByDate[j].Date })

	out.CheckInsByDate = make([]models.DailyCheckIns, 0, len(checkIns))
	for _, dc := range checkIns {
		out.CheckInsByDate = append(out.CheckInsByDate, *dc)
	}
	sort.Slice(out.CheckInsByDate, func(i, j int) bool { return out.CheckInsByDate[i].Date < out.CheckInsByDate[j].Date })

	out.CategoryDistribution = make([]models.CategoryCount, 0, len(categories))
	for cat, n := range categories {
		out.CategoryDistribution = append(out.CategoryDistribution, models.CategoryCount{Category: cat, Count: n})
	}
	sort.Slice(out.CategoryDistribution, func(i, j int) bool {
		a, b := out.CategoryDistribution[i], out.CategoryDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	return out, nil
}

// VerifyTicket reports whether a ticket is paid for. Used tickets still
// verify; admission is CheckIn's job.
func (s *ticketService) VerifyTicket(ctx context.Context, eventID, ticketID string) (*models.TicketVerification, error) {
	if ticketID == "" {
		return nil, ErrTicketNotFound
	}

	ev, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	t, err := s.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, err
	}
	if !t.IsPaid() {
		return nil, ErrNotPaid
	}

	return &models.TicketVerification{
		Valid: true,
		Ticket: models.VerifiedTicket{
			ID:            t.ID,
			EventTitle:    ev.Title,
			EventDate:     ev.Date,
			Status:        t.Status,
			InvoiceStatus: t.InvoiceStatus,
			SeatNumber:    t.SeatNumber,
		},
	}, nil
}

func (s *ticketService) getEvent(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		s.l.Errorf(ctx, "service.ticketService.getEvent: %v", err)
		return nil, storeErr(err)
	}
	return ev, nil
}
