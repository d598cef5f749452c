package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

type Reconciler interface {
	ReconcileSettlement(ctx context.Context, st models.Settlement) (int64, error)
}

type WatcherStatus struct {
	IsRunning    bool      `json:"is_running"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	LastSettled  time.Time `json:"last_settled,omitempty"`
	Received     int64     `json:"received"`
	TotalUpdated int64     `json:"total_updated"`
	ErrorCount   int64     `json:"error_count"`
}

// SettlementWatcher feeds the node's settlement stream into the ticket
// service. Delivery is at least once; reconciling a settlement twice is a
// no-op in the service.
type SettlementWatcher struct {
	oracle          lightning.InvoiceOracle
	rec             Reconciler
	l               logger.Logger
	shutdownTimeout time.Duration

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	lastSettled  time.Time
	received     int64
	totalUpdated int64
	errorCount   int64
}

func NewSettlementWatcher(oracle lightning.InvoiceOracle, rec Reconciler, l logger.Logger) *SettlementWatcher {
	return &SettlementWatcher{
		oracle:          oracle,
		rec:             rec,
		l:               l,
		shutdownTimeout: 30 * time.Second,
	}
}

func (w *SettlementWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("settlement watcher is already running")
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := w.oracle.SubscribeSettlements(subCtx)
	if err != nil {
		cancel()
		return err
	}

	w.isRunning = true
	w.startedAt = time.Now()
	w.cancel = cancel

	w.wg.Add(1)
	go w.watch(subCtx, ch)

	w.l.Info(ctx, "Settlement watcher started")
	return nil
}

func (w *SettlementWatcher) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return errors.New("settlement watcher is not running")
	}
	w.cancel()
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.l.Info(context.Background(), "Settlement watcher stopped gracefully")
	case <-time.After(w.shutdownTimeout):
		w.l.Warn(context.Background(), "Settlement watcher shutdown timeout exceeded")
	}

	w.mu.Lock()
	w.isRunning = false
	w.mu.Unlock()
	return nil
}

func (w *SettlementWatcher) watch(ctx context.Context, ch <-chan models.Settlement) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					w.l.Warn(ctx, "Settlement stream closed")
				}
				return
			}
			w.handle(ctx, st)
		}
	}
}

func (w *SettlementWatcher) handle(ctx context.Context, st models.Settlement) {
	n, err := w.rec.ReconcileSettlement(ctx, st)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.received++
	if err != nil {
		w.errorCount++
		w.l.Errorw(ctx, "failed to reconcile settlement",
			"payment_hash", st.PaymentHash,
			"error", err,
		)
		return
	}

	w.lastSettled = time.Now()
	w.totalUpdated += n
	if n > 0 {
		w.l.Infow(ctx, "settlement reconciled",
			"payment_hash", st.PaymentHash,
			"amount_paid_sats", st.AmountPaidSats,
			"updated", n,
		)
	}
}

func (w *SettlementWatcher) GetStatus() WatcherStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return WatcherStatus{
		IsRunning:    w.isRunning,
		StartedAt:    w.startedAt,
		LastSettled:  w.lastSettled,
		Received:     w.received,
		TotalUpdated: w.totalUpdated,
		ErrorCount:   w.errorCount,
	}
}
