package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/infra/database"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

// fakeOracle is an in-memory invoice book standing in for the Lightning node.
type fakeOracle struct {
	mu        sync.Mutex
	seq       int
	invoices  map[string]*models.InvoiceLookup
	createErr error
	lookupErr error
	creates   int

	// When hold is set CreateInvoice signals entered, then waits for hold to close.
	hold    chan struct{}
	entered chan struct{}
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{invoices: map[string]*models.InvoiceLookup{}}
}

func (o *fakeOracle) nextHash() string {
	o.seq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("invoice-%d", o.seq)))
	return hex.EncodeToString(sum[:])
}

func (o *fakeOracle) CreateInvoice(ctx context.Context, amountSats int64, memo string, expiry time.Duration) (*models.Invoice, error) {
	if o.hold != nil {
		o.entered <- struct{}{}
		<-o.hold
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.creates++
	if o.createErr != nil {
		return nil, o.createErr
	}

	hash := o.nextHash()
	o.invoices[hash] = &models.InvoiceLookup{PaymentHash: hash, State: models.InvoiceStateOpen}

	now := time.Now()
	return &models.Invoice{
		PaymentHash:    hash,
		PaymentRequest: "lnbcrt" + hash[:16],
		AmountSats:     amountSats,
		Memo:           memo,
		CreatedAt:      now,
		ExpiresAt:      now.Add(expiry),
	}, nil
}

func (o *fakeOracle) LookupInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.lookupErr != nil {
		return nil, o.lookupErr
	}

	lk, ok := o.invoices[paymentHash]
	if !ok {
		return nil, lightning.ErrInvoiceNotFound
	}
	cp := *lk
	return &cp, nil
}

func (o *fakeOracle) SubscribeSettlements(ctx context.Context) (<-chan models.Settlement, error) {
	ch := make(chan models.Settlement)
	close(ch)
	return ch, nil
}

func (o *fakeOracle) settle(hash string, amount int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	o.invoices[hash] = &models.InvoiceLookup{
		PaymentHash:    hash,
		State:          models.InvoiceStateSettled,
		Settled:        true,
		AmountPaidSats: amount,
		SettledAt:      &now,
	}
}

func (o *fakeOracle) cancel(hash string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invoices[hash] = &models.InvoiceLookup{PaymentHash: hash, State: models.InvoiceStateCanceled}
}

// external registers an invoice minted outside this service, as in the claim flow.
func (o *fakeOracle) external(amount int64, settled bool) string {
	o.mu.Lock()
	hash := o.nextHash()
	o.invoices[hash] = &models.InvoiceLookup{PaymentHash: hash, State: models.InvoiceStateOpen}
	o.mu.Unlock()

	if settled {
		o.settle(hash, amount)
	}
	return hash
}

type fakeDecoder struct {
	known map[string]*models.DecodedInvoice
}

func (d fakeDecoder) Decode(payReq string) (*models.DecodedInvoice, error) {
	if dec, ok := d.known[payReq]; ok {
		return dec, nil
	}
	return nil, lightning.ErrInvalidPaymentRequest
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingProducer struct {
	mu        sync.Mutex
	reserved  []kafka.TicketsReservedEvent
	confirmed []kafka.PaymentConfirmedEvent
	claimed   []kafka.TicketClaimedEvent
	checkedIn []kafka.TicketCheckedInEvent
	moved     []kafka.TicketTransferredEvent
	expired   []kafka.TicketsExpiredEvent
}

func (p *recordingProducer) PublishTicketsReserved(_ context.Context, e kafka.TicketsReservedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserved = append(p.reserved, e)
	return nil
}

func (p *recordingProducer) PublishPaymentConfirmed(_ context.Context, e kafka.PaymentConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, e)
	return nil
}

func (p *recordingProducer) PublishTicketClaimed(_ context.Context, e kafka.TicketClaimedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimed = append(p.claimed, e)
	return nil
}

func (p *recordingProducer) PublishTicketCheckedIn(_ context.Context, e kafka.TicketCheckedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkedIn = append(p.checkedIn, e)
	return nil
}

func (p *recordingProducer) PublishTicketTransferred(_ context.Context, e kafka.TicketTransferredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moved = append(p.moved, e)
	return nil
}

func (p *recordingProducer) PublishTicketsExpired(_ context.Context, e kafka.TicketsExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, e)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type testEnv struct {
	store  sqldb.Store
	oracle *fakeOracle
	prod   *recordingProducer
	clock  *testClock
	tokens TokenIssuer
	dec    fakeDecoder
	svc    TicketService
	events EventService
}

type envOption func(*TicketServiceConfig)

func withoutCapacityRelease() envOption {
	return func(c *TicketServiceConfig) { c.ReleaseCapacityOnExpiry = false }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Connect(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		DSN:         "file:" + filepath.Join(t.TempDir(), "tickets.db"),
		PingTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, sqldb.Migrate(ctx, db, config.DriverSQLite))

	l := logger.InitializeTestZapLogger()
	store := sqldb.NewStore(db, config.DriverSQLite, l)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:  store,
		oracle: newFakeOracle(),
		prod:   &recordingProducer{},
		clock:  &testClock{t: time.Now().UTC()},
		tokens: NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}),
	}

	cfg := TicketServiceConfig{
		InvoiceExpiry:           30 * time.Minute,
		PendingTTL:              time.Hour,
		ReleaseCapacityOnExpiry: true,
		StreamPollInterval:      10 * time.Millisecond,
		Now:                     env.clock.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}

	env.dec = fakeDecoder{known: map[string]*models.DecodedInvoice{}}
	env.svc = NewTicketService(store, env.oracle, env.dec, env.prod, nil, env.tokens, cfg, l)
	env.events = NewEventService(store, l)
	return env
}

func (e *testEnv) createEvent(t *testing.T, count, price int64) *models.Event {
	t.Helper()

	ev, err := e.events.CreateEvent(context.Background(), CreateEventInput{
		Title:       "Bitcoin Meetup",
		Date:        time.Now().Add(48 * time.Hour),
		TicketPrice: price,
		TicketCount: count,
	})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) sold(t *testing.T, eventID string) int64 {
	t.Helper()

	ev, err := e.store.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	return ev.TicketsSold
}

// validTicket buys one ticket and confirms its payment.
func (e *testEnv) validTicket(t *testing.T, eventID string) *models.Ticket {
	t.Helper()
	ctx := context.Background()

	p, err := e.svc.IssueBulkPurchase(ctx, IssueBulkPurchaseInput{EventID: eventID, Quantity: 1, OwnerEmail: "alice@example.com"})
	require.NoError(t, err)

	e.oracle.settle(p.Invoice.PaymentHash, p.TotalSats)
	_, err = e.svc.ConfirmBulkPayment(ctx, eventID, p.Invoice.PaymentHash)
	require.NoError(t, err)

	tkt, err := e.svc.GetTicket(ctx, eventID, p.Tickets[0].ID)
	require.NoError(t, err)
	return tkt
}
