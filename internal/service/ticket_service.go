package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	repository "github.com/vogiaan1904/ticketbottle-lightning/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/metrics"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/util"
)

type TicketService interface {
	IssueBulkPurchase(ctx context.Context, in IssueBulkPurchaseInput) (*models.Purchase, error)
	ClaimSingleTicket(ctx context.Context, eventID, paymentHash string) (*models.ClaimResult, error)
	ClaimWithPaymentRequest(ctx context.Context, eventID, paymentRequest string) (*models.ClaimResult, error)
	ConfirmBulkPayment(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error)
	CheckPaymentStatus(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error)
	GetInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error)
	DecodeInvoice(ctx context.Context, paymentRequest string) (*models.DecodedInvoice, error)

	CheckIn(ctx context.Context, eventID, ticketID string) (*models.Ticket, error)
	CheckInWithToken(ctx context.Context, token string) (*models.Ticket, error)
	IssueTicketToken(ctx context.Context, eventID, ticketID string) (*TicketTokenOutput, error)
	BulkCheckIn(ctx context.Context, eventID string, ticketIDs []string) (*BulkOutput, error)
	BulkTransfer(ctx context.Context, eventID string, items []TransferItem) (*BulkOutput, error)

	ExpireStalePending(ctx context.Context, eventID string) (*ExpireOutput, error)
	ReconcileSettlement(ctx context.Context, st models.Settlement) (int64, error)

	ListTickets(ctx context.Context, in ListTicketsInput) ([]*models.Ticket, error)
	GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error)
	VerifyTicket(ctx context.Context, eventID, ticketID string) (*models.TicketVerification, error)
	EventAnalytics(ctx context.Context, eventID string) (*models.EventAnalytics, error)

	// StreamPaymentStatus sends the current payment state, then every change,
	// until the payment is paid or expired or ctx is done.
	StreamPaymentStatus(ctx context.Context, eventID, paymentHash string, upds chan<- *models.PaymentUpdate) error
}

type TicketServiceConfig struct {
	InvoiceExpiry           time.Duration
	PendingTTL              time.Duration
	ReleaseCapacityOnExpiry bool
	StreamPollInterval      time.Duration
	Now                     func() time.Time
}

type ticketService struct {
	store   sqldb.Store
	oracle  lightning.InvoiceOracle
	decoder lightning.Decoder
	prod    producer.Producer
	updates repository.PaymentUpdateRepository
	tokens  TokenIssuer
	cfg     TicketServiceConfig
	v       *validator.Validate
	l       logger.Logger
}

// NewTicketService wires the lifecycle engine. updates may be nil, in which
// case payment streams fall back to polling.
func NewTicketService(
	store sqldb.Store,
	oracle lightning.InvoiceOracle,
	decoder lightning.Decoder,
	prod producer.Producer,
	updates repository.PaymentUpdateRepository,
	tokens TokenIssuer,
	cfg TicketServiceConfig,
	l logger.Logger,
) TicketService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StreamPollInterval <= 0 {
		cfg.StreamPollInterval = 5 * time.Second
	}
	if prod == nil {
		prod = producer.NewNoopProducer()
	}

	return &ticketService{
		store:   store,
		oracle:  oracle,
		decoder: decoder,
		prod:    prod,
		updates: updates,
		tokens:  tokens,
		cfg:     cfg,
		v:       validator.New(),
		l:       l,
	}
}

func (s *ticketService) now() time.Time {
	return s.cfg.Now().UTC()
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func oracleErr(err error) error {
	switch {
	case errors.Is(err, lightning.ErrInvoiceNotFound):
		return ErrInvoiceNotFound
	case errors.Is(err, lightning.ErrInvalidPaymentHash):
		return ErrInvalidPaymentHash
	case errors.Is(err, lightning.ErrInvalidPaymentRequest):
		return ErrInvalidPaymentRequest
	default:
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
}

// isInfraErr separates faults that must abort a whole operation from
// per-item business outcomes.
func isInfraErr(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrOracleUnavailable)
}

func parseHash(hash string) (string, error) {
	h, err := lightning.ParsePaymentHash(hash)
	if err != nil {
		return "", ErrInvalidPaymentHash
	}
	return h, nil
}

func (s *ticketService) lookupInvoice(ctx context.Context, hash string) (*models.InvoiceLookup, error) {
	lk, err := s.oracle.LookupInvoiceStatus(ctx, hash)
	if err != nil {
		return nil, oracleErr(err)
	}
	return lk, nil
}

func (s *ticketService) IssueBulkPurchase(ctx context.Context, in IssueBulkPurchaseInput) (*models.Purchase, error) {
	if in.Quantity < 1 || int64(len(in.SeatNumbers)) > in.Quantity {
		return nil, ErrInvalidQuantity
	}

	ev, err := s.store.GetEvent(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		s.l.Errorf(ctx, "service.ticketService.IssueBulkPurchase: %v", err)
		return nil, storeErr(err)
	}
	if ev.Available() < in.Quantity {
		return nil, s.rejectPurchase(ctx, ev, in.Quantity)
	}

	total := ev.TicketPrice * in.Quantity
	totalBTC := util.SatsToBTC(total)
	memo := fmt.Sprintf("%d x %s (%s BTC)", in.Quantity, ev.Title, totalBTC)

	// The invoice is minted before the transaction opens so a slow node never
	// holds a store connection. An invoice left unused by a lost race below
	// simply expires.
	inv, err := s.oracle.CreateInvoice(ctx, total, memo, s.cfg.InvoiceExpiry)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.IssueBulkPurchase: %v", err)
		return nil, oracleErr(err)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	ok, err := uow.ReserveCapacity(ctx, in.EventID, in.Quantity)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.IssueBulkPurchase: %v", err)
		return nil, storeErr(err)
	}
	if !ok {
		ev, err := uow.GetEvent(ctx, in.EventID)
		if err != nil {
			if errors.Is(err, sqldb.ErrEventNotFound) {
				return nil, ErrEventNotFound
			}
			return nil, storeErr(err)
		}
		return nil, s.rejectPurchase(ctx, ev, in.Quantity)
	}

	now := s.now()
	tickets := make([]*models.Ticket, 0, in.Quantity)
	for i := int64(0); i < in.Quantity; i++ {
		tickets = append(tickets, &models.Ticket{
			ID:             uuid.NewString(),
			EventID:        ev.ID,
			Status:         models.TicketStatusPending,
			Source:         models.TicketSourceBulk,
			CreatedAt:      now,
			InvoiceID:      inv.PaymentHash,
			InvoiceRequest: inv.PaymentRequest,
			InvoiceStatus:  models.InvoiceStatusPending,
			SeatNumber:     seatAt(in.SeatNumbers, i),
			Category:       in.Category,
			OwnerEmail:     in.OwnerEmail,
		})
	}

	if err := uow.InsertTickets(ctx, tickets); err != nil {
		s.l.Errorf(ctx, "service.ticketService.IssueBulkPurchase: %v", err)
		return nil, storeErr(err)
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.IssueBulkPurchase: %v", err)
		return nil, storeErr(err)
	}

	metrics.TicketsIssued.WithLabelValues(string(models.TicketSourceBulk)).Add(float64(in.Quantity))

	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	if err := s.prod.PublishTicketsReserved(ctx, kafka.TicketsReservedEvent{
		EventID:     ev.ID,
		TicketIDs:   ids,
		PaymentHash: inv.PaymentHash,
		AmountSats:  total,
		OwnerEmail:  in.OwnerEmail,
		ExpiresAt:   inv.ExpiresAt,
	}); err != nil {
		s.l.Errorf(ctx, "service.ticketService.IssueBulkPurchase: %v", err)
	}

	s.l.Infow(ctx, "bulk purchase reserved",
		"event_id", ev.ID,
		"quantity", in.Quantity,
		"payment_hash", inv.PaymentHash,
		"amount_sats", total,
	)

	return &models.Purchase{
		EventID:   ev.ID,
		Tickets:   tickets,
		Invoice:   inv,
		TotalSats: total,
		TotalBTC:  totalBTC,
	}, nil
}

func (s *ticketService) rejectPurchase(ctx context.Context, ev *models.Event, qty int64) error {
	metrics.CapacityRejections.WithLabelValues(string(models.TicketSourceBulk)).Inc()
	s.l.Warnf(ctx, "service.ticketService.IssueBulkPurchase: %v: event=%s requested=%d available=%d",
		ErrCapacityExceeded, ev.ID, qty, ev.Available())
	return ErrCapacityExceeded
}

func seatAt(seats []string, i int64) string {
	if i < int64(len(seats)) {
		return seats[i]
	}
	return ""
}

func (s *ticketService) ClaimSingleTicket(ctx context.Context, eventID, paymentHash string) (*models.ClaimResult, error) {
	hash, err := parseHash(paymentHash)
	if err != nil {
		return nil, err
	}

	lk, err := s.lookupInvoice(ctx, hash)
	if err != nil {
		s.l.Warnf(ctx, "service.ticketService.ClaimSingleTicket: %v", err)
		return nil, err
	}
	if !lk.Settled {
		return nil, ErrInvoicePending
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer uow.Rollback()

	existing, err := uow.FindClaimedTicket(ctx, hash)
	switch {
	case err == nil:
		if existing.EventID != eventID {
			return nil, ErrInvoiceAlreadyUsed
		}
		return &models.ClaimResult{Ticket: existing, AlreadyClaimed: true}, nil
	case !errors.Is(err, sqldb.ErrTicketNotFound):
		s.l.Errorf(ctx, "service.ticketService.ClaimSingleTicket: %v", err)
		return nil, storeErr(err)
	}

	ev, err := uow.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, storeErr(err)
	}

	purchased, err := uow.HasPurchaseForInvoice(ctx, hash)
	if err != nil {
		return nil, storeErr(err)
	}
	if purchased {
		return nil, ErrInvoiceAlreadyUsed
	}

	if lk.AmountPaidSats < ev.TicketPrice {
		s.l.Warnf(ctx, "service.ticketService.ClaimSingleTicket: %v: paid=%d price=%d",
			ErrInsufficientPayment, lk.AmountPaidSats, ev.TicketPrice)
		return nil, ErrInsufficientPayment
	}

	ok, err := uow.ReserveCapacity(ctx, eventID, 1)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		metrics.CapacityRejections.WithLabelValues(string(models.TicketSourceClaim)).Inc()
		return nil, ErrNoTicketsAvailable
	}

	t := &models.Ticket{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Status:        models.TicketStatusValid,
		Source:        models.TicketSourceClaim,
		CreatedAt:     s.now(),
		InvoiceID:     hash,
		InvoiceStatus: models.InvoiceStatusPaid,
	}

	if err := uow.InsertTickets(ctx, []*models.Ticket{t}); err != nil {
		if errors.Is(err, sqldb.ErrDuplicateClaim) {
			// A concurrent claim for the same invoice won the race, here or
			// at another event.
			return s.rereadClaim(ctx, uow, eventID, hash)
		}
		s.l.Errorf(ctx, "service.ticketService.ClaimSingleTicket: %v", err)
		return nil, storeErr(err)
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.ClaimSingleTicket: %v", err)
		return nil, storeErr(err)
	}

	metrics.TicketsIssued.WithLabelValues(string(models.TicketSourceClaim)).Inc()

	if err := s.prod.PublishTicketClaimed(ctx, kafka.TicketClaimedEvent{
		EventID:     eventID,
		TicketID:    t.ID,
		PaymentHash: hash,
	}); err != nil {
		s.l.Errorf(ctx, "service.ticketService.ClaimSingleTicket: %v", err)
	}

	s.l.Infow(ctx, "ticket claimed", "event_id", eventID, "ticket_id", t.ID, "payment_hash", hash)

	return &models.ClaimResult{Ticket: t}, nil
}

func (s *ticketService) rereadClaim(ctx context.Context, uow sqldb.UnitOfWork, eventID, hash string) (*models.ClaimResult, error) {
	if err := uow.Rollback(); err != nil {
		return nil, storeErr(err)
	}

	t, err := s.store.FindClaimedTicket(ctx, hash)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.rereadClaim: %v", err)
		return nil, storeErr(err)
	}
	if t.EventID != eventID {
		return nil, ErrInvoiceAlreadyUsed
	}

	return &models.ClaimResult{Ticket: t, AlreadyClaimed: true}, nil
}

func (s *ticketService) ClaimWithPaymentRequest(ctx context.Context, eventID, paymentRequest string) (*models.ClaimResult, error) {
	dec, err := s.DecodeInvoice(ctx, paymentRequest)
	if err != nil {
		return nil, err
	}

	return s.ClaimSingleTicket(ctx, eventID, dec.PaymentHash)
}

func (s *ticketService) ConfirmBulkPayment(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error) {
	hash, err := parseHash(paymentHash)
	if err != nil {
		return nil, err
	}

	lk, err := s.lookupInvoice(ctx, hash)
	if err != nil {
		s.l.Warnf(ctx, "service.ticketService.ConfirmBulkPayment: %v", err)
		return nil, err
	}
	if !lk.Settled {
		return nil, ErrInvoiceNotPaid
	}

	n, err := s.confirm(ctx, eventID, hash)
	if err != nil {
		return nil, err
	}

	return &models.PaymentCheck{
		EventID:      eventID,
		PaymentHash:  hash,
		Status:       models.PaymentStatusPaid,
		UpdatedCount: n,
		CheckedAt:    s.now(),
	}, nil
}

// confirm moves the pending tickets of one invoice to valid. A repeat call
// updates nothing and is not an error.
func (s *ticketService) confirm(ctx context.Context, eventID, hash string) (int64, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	defer uow.Rollback()

	if _, err := uow.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return 0, ErrEventNotFound
		}
		return 0, storeErr(err)
	}

	n, err := uow.ConfirmPendingTickets(ctx, eventID, hash)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.confirm: %v", err)
		return 0, storeErr(err)
	}

	if err := uow.Commit(); err != nil {
		s.l.Errorf(ctx, "service.ticketService.confirm: %v", err)
		return 0, storeErr(err)
	}

	if n > 0 {
		s.afterConfirm(ctx, eventID, hash, n)
	}

	return n, nil
}

func (s *ticketService) afterConfirm(ctx context.Context, eventID, hash string, n int64) {
	metrics.TicketsConfirmed.Add(float64(n))

	if err := s.prod.PublishPaymentConfirmed(ctx, kafka.PaymentConfirmedEvent{
		EventID:      eventID,
		PaymentHash:  hash,
		UpdatedCount: n,
	}); err != nil {
		s.l.Errorf(ctx, "service.ticketService.afterConfirm: %v", err)
	}

	s.notify(ctx, eventID, hash, models.PaymentStatusPaid, n)

	s.l.Infow(ctx, "payment confirmed", "event_id", eventID, "payment_hash", hash, "updated", n)
}

func (s *ticketService) notify(ctx context.Context, eventID, hash string, status models.PaymentStatus, n int64) {
	if s.updates == nil {
		return
	}

	if err := s.updates.Publish(ctx, &models.PaymentUpdate{
		EventID:      eventID,
		PaymentHash:  hash,
		Status:       status,
		UpdatedCount: n,
		Timestamp:    s.now(),
	}); err != nil {
		s.l.Warnf(ctx, "service.ticketService.notify: %v", err)
	}
}

func (s *ticketService) CheckPaymentStatus(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error) {
	hash, err := parseHash(paymentHash)
	if err != nil {
		return nil, err
	}

	pc := &models.PaymentCheck{
		EventID:     eventID,
		PaymentHash: hash,
		Status:      models.PaymentStatusPending,
	}

	lk, err := s.lookupInvoice(ctx, hash)
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		pc.Status = models.PaymentStatusExpired
	case err != nil:
		s.l.Warnf(ctx, "service.ticketService.CheckPaymentStatus: %v", err)
		return nil, err
	case lk.Settled:
		n, err := s.confirm(ctx, eventID, hash)
		if err != nil {
			return nil, err
		}
		pc.Status = models.PaymentStatusPaid
		pc.UpdatedCount = n
	case lk.State == models.InvoiceStateCanceled:
		n, err := s.expireInvoice(ctx, eventID, hash)
		if err != nil {
			return nil, err
		}
		pc.Status = models.PaymentStatusExpired
		pc.UpdatedCount = n
	}

	pc.CheckedAt = s.now()
	return pc, nil
}

func (s *ticketService) expireInvoice(ctx context.Context, eventID, hash string) (int64, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	defer uow.Rollback()

	n, err := uow.ExpireInvoice(ctx, eventID, hash)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.expireInvoice: %v", err)
		return 0, storeErr(err)
	}

	if err := uow.Commit(); err != nil {
		return 0, storeErr(err)
	}

	if n > 0 {
		s.notify(ctx, eventID, hash, models.PaymentStatusExpired, n)
	}

	return n, nil
}

func (s *ticketService) GetInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error) {
	hash, err := parseHash(paymentHash)
	if err != nil {
		return nil, err
	}

	lk, err := s.lookupInvoice(ctx, hash)
	if err != nil {
		s.l.Warnf(ctx, "service.ticketService.GetInvoiceStatus: %v", err)
		return nil, err
	}

	return lk, nil
}

func (s *ticketService) DecodeInvoice(ctx context.Context, paymentRequest string) (*models.DecodedInvoice, error) {
	dec, err := s.decoder.Decode(paymentRequest)
	if err != nil {
		s.l.Warnf(ctx, "service.ticketService.DecodeInvoice: %v", err)
		return nil, ErrInvalidPaymentRequest
	}

	return dec, nil
}

func (s *ticketService) ListTickets(ctx context.Context, in ListTicketsInput) ([]*models.Ticket, error) {
	if _, err := s.store.GetEvent(ctx, in.EventID); err != nil {
		if errors.Is(err, sqldb.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, storeErr(err)
	}

	if _, err := s.ExpireStalePending(ctx, in.EventID); err != nil {
		s.l.Warnf(ctx, "service.ticketService.ListTickets: %v", err)
	}

	f := sqldb.TicketFilter{
		Status:        in.Status,
		InvoiceStatus: in.InvoiceStatus,
	}
	if in.PaymentHash != "" {
		hash, err := parseHash(in.PaymentHash)
		if err != nil {
			return nil, err
		}
		f.InvoiceID = hash
	}

	tickets, err := s.store.ListTickets(ctx, in.EventID, f)
	if err != nil {
		s.l.Errorf(ctx, "service.ticketService.ListTickets: %v", err)
		return nil, storeErr(err)
	}

	return tickets, nil
}

func (s *ticketService) GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		if errors.Is(err, sqldb.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		s.l.Errorf(ctx, "service.ticketService.GetTicket: %v", err)
		return nil, storeErr(err)
	}

	return t, nil
}
