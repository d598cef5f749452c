package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q queryer
}

const eventColumns = `id, title, description, date, ticket_price, ticket_count, tickets_sold, created_at`

const ticketColumns = `id, event_id, status, source, created_at, invoice_id, invoice_request,
	invoice_status, seat_number, category, checked_in_at, owner_email, owner_address,
	transferred_at, transfer_history, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date,
		&e.TicketPrice, &e.TicketCount, &e.TicketsSold, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var (
		t            models.Ticket
		status       string
		source       string
		invStatus    string
		checkedInAt  sql.NullTime
		transferedAt sql.NullTime
		history      string
	)

	if err := row.Scan(
		&t.ID, &t.EventID, &status, &source, &t.CreatedAt, &t.InvoiceID, &t.InvoiceRequest,
		&invStatus, &t.SeatNumber, &t.Category, &checkedInAt, &t.OwnerEmail, &t.OwnerAddress,
		&transferedAt, &history, &t.Version,
	); err != nil {
		return nil, err
	}

	t.Status = models.TicketStatus(status)
	t.Source = models.TicketSource(source)
	t.InvoiceStatus = models.InvoiceStatus(invStatus)
	t.CreatedAt = t.CreatedAt.UTC()

	if checkedInAt.Valid {
		at := checkedInAt.Time.UTC()
		t.CheckedInAt = &at
	}
	if transferedAt.Valid {
		at := transferedAt.Time.UTC()
		t.TransferredAt = &at
	}

	if history != "" {
		if err := json.Unmarshal([]byte(history), &t.TransferHistory); err != nil {
			return nil, fmt.Errorf("failed to decode transfer history: %w", err)
		}
	}

	return &t, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (q queries) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return e, nil
}

func (q queries) ListEvents(ctx context.Context) ([]*models.Event, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func (q queries) GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 AND event_id = $2`,
		ticketID, eventID)

	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return t, nil
}

func (q queries) ListTickets(ctx context.Context, eventID string, f TicketFilter) ([]*models.Ticket, error) {
	var (
		where = []string{"event_id = $1"}
		args  = []any{eventID}
	)

	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.InvoiceStatus != "" {
		args = append(args, string(f.InvoiceStatus))
		where = append(where, fmt.Sprintf("invoice_status = $%d", len(args)))
	}
	if f.InvoiceID != "" {
		args = append(args, f.InvoiceID)
		where = append(where, fmt.Sprintf("invoice_id = $%d", len(args)))
	}

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+strings.Join(where, " AND ")+
			` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*models.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// FindClaimedTicket returns the ticket claimed with invoiceID at any event.
func (q queries) FindClaimedTicket(ctx context.Context, invoiceID string) (*models.Ticket, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		WHERE invoice_id = $1 AND source = $2`,
		invoiceID, string(models.TicketSourceClaim))

	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to find claimed ticket: %w", err)
	}

	return t, nil
}

func (q queries) HasPurchaseForInvoice(ctx context.Context, invoiceID string) (bool, error) {
	var n int64
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE invoice_id = $1 AND source = $2`,
		invoiceID, string(models.TicketSourceBulk)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count purchase tickets: %w", err)
	}

	return n > 0, nil
}

func (q queries) PendingEventsForInvoice(ctx context.Context, invoiceID string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT DISTINCT event_id FROM tickets WHERE invoice_id = $1 AND status = $2`,
		invoiceID, string(models.TicketStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}

	return collectStrings(rows)
}

func (q queries) EventsWithStalePending(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT DISTINCT event_id FROM tickets WHERE status = $1 AND created_at < $2`,
		string(models.TicketStatusPending), utc(before))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale events: %w", err)
	}

	return collectStrings(rows)
}

func (q queries) StalePendingInvoices(ctx context.Context, eventID string, before time.Time) ([]string, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT DISTINCT invoice_id FROM tickets
		WHERE event_id = $1 AND status = $2 AND created_at < $3 AND invoice_id <> ''`,
		eventID, string(models.TicketStatusPending), utc(before))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale invoices: %w", err)
	}

	return collectStrings(rows)
}

func (q queries) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Title, e.Description, utc(e.Date),
		e.TicketPrice, e.TicketCount, e.TicketsSold, utc(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (q queries) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM tickets WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to delete event tickets: %w", err)
	}

	res, err := q.q.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}

	return nil
}

func (q queries) ReserveCapacity(ctx context.Context, eventID string, qty int64) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE events SET tickets_sold = tickets_sold + $1
		WHERE id = $2 AND tickets_sold + $1 <= ticket_count`,
		qty, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve capacity: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (q queries) ReleaseCapacity(ctx context.Context, eventID string, qty int64) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE events SET tickets_sold = CASE WHEN tickets_sold >= $1 THEN tickets_sold - $1 ELSE 0 END
		WHERE id = $2`,
		qty, eventID)
	if err != nil {
		return fmt.Errorf("failed to release capacity: %w", err)
	}

	return nil
}

func (q queries) InsertTickets(ctx context.Context, tickets []*models.Ticket) error {
	for _, t := range tickets {
		history, err := encodeHistory(t.TransferHistory)
		if err != nil {
			return err
		}

		version := t.Version
		if version == 0 {
			version = 1
		}

		_, err = q.q.ExecContext(ctx,
			`INSERT INTO tickets (`+ticketColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			t.ID, t.EventID, string(t.Status), string(t.Source), utc(t.CreatedAt),
			t.InvoiceID, t.InvoiceRequest, string(t.InvoiceStatus), t.SeatNumber, t.Category,
			nullTime(t.CheckedInAt), t.OwnerEmail, t.OwnerAddress, nullTime(t.TransferredAt),
			history, version)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %w", ErrDuplicateClaim, err)
			}
			return fmt.Errorf("failed to insert ticket: %w", err)
		}

		t.Version = version
	}

	return nil
}

func (q queries) ConfirmPendingTickets(ctx context.Context, eventID, invoiceID string) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE tickets SET status = $1, invoice_status = $2, version = version + 1
		WHERE event_id = $3 AND invoice_id = $4 AND status = $5`,
		string(models.TicketStatusValid), string(models.InvoiceStatusPaid),
		eventID, invoiceID, string(models.TicketStatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to confirm tickets: %w", err)
	}

	return res.RowsAffected()
}

func (q queries) ExpireInvoice(ctx context.Context, eventID, invoiceID string) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE tickets SET invoice_status = $1, version = version + 1
		WHERE event_id = $2 AND invoice_id = $3 AND status = $4 AND invoice_status = $5`,
		string(models.InvoiceStatusExpired), eventID, invoiceID,
		string(models.TicketStatusPending), string(models.InvoiceStatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to expire invoice tickets: %w", err)
	}

	return res.RowsAffected()
}

func (q queries) MarkUsed(ctx context.Context, eventID, ticketID string, at time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE tickets SET status = $1, checked_in_at = $2, version = version + 1
		WHERE id = $3 AND event_id = $4 AND status = $5 AND invoice_status = $6`,
		string(models.TicketStatusUsed), utc(at), ticketID, eventID,
		string(models.TicketStatusValid), string(models.InvoiceStatusPaid))
	if err != nil {
		return false, fmt.Errorf("failed to mark ticket used: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// TransferTicket moves t to rec.ToEmail if t has not changed since it was
// read. On success t is updated in place.
func (q queries) TransferTicket(ctx context.Context, t *models.Ticket, rec models.TransferRecord) (bool, error) {
	history := append(slices.Clone(t.TransferHistory), rec)
	encoded, err := encodeHistory(history)
	if err != nil {
		return false, err
	}

	res, err := q.q.ExecContext(ctx,
		`UPDATE tickets SET owner_email = $1, transferred_at = $2, transfer_history = $3, version = version + 1
		WHERE id = $4 AND event_id = $5 AND version = $6 AND status <> $7 AND invoice_status = $8`,
		rec.ToEmail, utc(rec.TransferredAt), encoded, t.ID, t.EventID, t.Version,
		string(models.TicketStatusUsed), string(models.InvoiceStatusPaid))
	if err != nil {
		return false, fmt.Errorf("failed to transfer ticket: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	at := rec.TransferredAt.UTC()
	t.OwnerEmail = rec.ToEmail
	t.TransferredAt = &at
	t.TransferHistory = history
	t.Version++
	return true, nil
}

// DeleteStalePending deletes pending tickets created before the cutoff,
// except those bound to an invoice listed in keep.
func (q queries) DeleteStalePending(ctx context.Context, eventID string, before time.Time, keep []string) (int64, error) {
	query := `DELETE FROM tickets WHERE event_id = $1 AND status = $2 AND created_at < $3`
	args := []any{eventID, string(models.TicketStatusPending), utc(before)}

	if len(keep) > 0 {
		ph := make([]string, len(keep))
		for i, h := range keep {
			args = append(args, h)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` AND invoice_id NOT IN (` + strings.Join(ph, ", ") + `)`
	}

	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale tickets: %w", err)
	}

	return res.RowsAffected()
}

func encodeHistory(h []models.TransferRecord) (string, error) {
	if len(h) == 0 {
		return "[]", nil
	}

	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer history: %w", err)
	}

	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
