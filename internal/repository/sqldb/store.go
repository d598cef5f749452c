package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

type TicketFilter struct {
	Status        models.TicketStatus
	InvoiceStatus models.InvoiceStatus
	InvoiceID     string
}

// Reader holds the queries available both on the store and inside a unit of work.
type Reader interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error)
	ListTickets(ctx context.Context, eventID string, f TicketFilter) ([]*models.Ticket, error)
	FindClaimedTicket(ctx context.Context, invoiceID string) (*models.Ticket, error)
	HasPurchaseForInvoice(ctx context.Context, invoiceID string) (bool, error)
	PendingEventsForInvoice(ctx context.Context, invoiceID string) ([]string, error)
	EventsWithStalePending(ctx context.Context, before time.Time) ([]string, error)
	StalePendingInvoices(ctx context.Context, eventID string, before time.Time) ([]string, error)
}

// Store is the entitlement store. Mutations only happen through a
// UnitOfWork obtained from Begin.
type Store interface {
	Reader
	Begin(ctx context.Context) (UnitOfWork, error)
	Ping(ctx context.Context) error
	Close() error
}

// UnitOfWork is a single database transaction. Callers defer Rollback right
// after Begin and call Commit on success; Rollback after Commit is a no-op.
// While a unit of work is open the caller must not use the Store directly.
type UnitOfWork interface {
	Reader

	CreateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, eventID string) error

	// ReserveCapacity increments ticketsSold by qty only if the event keeps
	// ticketsSold <= ticketCount. It reports false when there is no room.
	ReserveCapacity(ctx context.Context, eventID string, qty int64) (bool, error)
	ReleaseCapacity(ctx context.Context, eventID string, qty int64) error

	InsertTickets(ctx context.Context, tickets []*models.Ticket) error
	ConfirmPendingTickets(ctx context.Context, eventID, invoiceID string) (int64, error)
	ExpireInvoice(ctx context.Context, eventID, invoiceID string) (int64, error)
	MarkUsed(ctx context.Context, eventID, ticketID string, at time.Time) (bool, error)
	TransferTicket(ctx context.Context, t *models.Ticket, rec models.TransferRecord) (bool, error)
	DeleteStalePending(ctx context.Context, eventID string, before time.Time, keep []string) (int64, error)

	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	Commit() error
	Rollback() error
}

type sqlStore struct {
	queries
	db     *sql.DB
	driver string
	l      logger.Logger
}

func NewStore(db *sql.DB, driver string, l logger.Logger) Store {
	return &sqlStore{
		queries: queries{q: db},
		db:      db,
		driver:  driver,
		l:       l,
	}
}

func (s *sqlStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.l.Errorf(ctx, "sqldb.sqlStore.Begin: %v", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &unitOfWork{
		queries: queries{q: tx},
		tx:      tx,
	}, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type unitOfWork struct {
	queries
	tx *sql.Tx
}

func (u *unitOfWork) Savepoint(ctx context.Context, name string) error {
	_, err := u.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (u *unitOfWork) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := u.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (u *unitOfWork) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (u *unitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
