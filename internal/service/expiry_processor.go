package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

// StaleEventFinder lists events that still hold pending tickets created
// before a cutoff.
type StaleEventFinder interface {
	EventsWithStalePending(ctx context.Context, before time.Time) ([]string, error)
}

type ExpiryProcessor interface {
	Start(ctx context.Context) error
	Stop() error
	// SweepOnce expires stale pending tickets across all events and returns
	// the number of deleted tickets.
	SweepOnce(ctx context.Context) (int64, error)
	GetStatus() ProcessorStatus
}

type ProcessorStatus struct {
	IsRunning     bool      `json:"is_running"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastProcessed time.Time `json:"last_processed,omitempty"`
	TotalExpired  int64     `json:"total_expired"`
	TotalSettled  int64     `json:"total_settled"`
	ErrorCount    int64     `json:"error_count"`
}

type ProcessorConfig struct {
	ProcessInterval       time.Duration
	PendingTTL            time.Duration
	RetryAttempts         int
	RetryDelay            time.Duration
	ShutdownTimeout       time.Duration
	MaxProcessingDuration time.Duration
}

type expiryProcessor struct {
	finder StaleEventFinder
	tktSvc TicketService
	l      logger.Logger
	config ProcessorConfig
	now    func() time.Time

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup

	lastProcessed time.Time
	totalExpired  int64
	totalSettled  int64
	errorCount    int64
}

func NewExpiryProcessor(
	finder StaleEventFinder,
	tktSvc TicketService,
	l logger.Logger,
	cfg config.TicketConfig,
) ExpiryProcessor {
	return &expiryProcessor{
		finder: finder,
		tktSvc: tktSvc,
		l:      l,
		config: ProcessorConfig{
			ProcessInterval:       cfg.ExpiryInterval,
			PendingTTL:            cfg.PendingTTL,
			RetryAttempts:         3,
			RetryDelay:            time.Second,
			ShutdownTimeout:       30 * time.Second,
			MaxProcessingDuration: 30 * time.Second,
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

func (p *expiryProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return errors.New("expiry processor is already running")
	}

	p.l.Infow(ctx, "starting expiry processor",
		"interval", p.config.ProcessInterval,
		"pending_ttl", p.config.PendingTTL,
	)

	p.isRunning = true
	p.startedAt = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(p.config.ProcessInterval)

	p.wg.Add(1)
	go p.processLoop(ctx, p.ticker, p.stopCh)

	return nil
}

func (p *expiryProcessor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return errors.New("expiry processor is not running")
	}

	close(p.stopCh)
	if p.ticker != nil {
		p.ticker.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.l.Info(context.Background(), "Expiry processor stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.l.Warn(context.Background(), "Expiry processor shutdown timeout exceeded")
	}

	p.isRunning = false
	return nil
}

func (p *expiryProcessor) processLoop(ctx context.Context, ticker *time.Ticker, stopCh <-chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.l.Info(ctx, "Expiry processor stopped due to context cancellation")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := p.SweepOnce(ctx); err != nil {
				p.l.Errorf(ctx, "service.expiryProcessor.processLoop: %v", err)
			}
		}
	}
}

func (p *expiryProcessor) SweepOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.lastProcessed = time.Now()
		p.mu.Unlock()

		if d := time.Since(start); d > p.config.MaxProcessingDuration {
			p.l.Warnw(ctx, "expiry sweep took longer than expected",
				"duration", d,
				"max_duration", p.config.MaxProcessingDuration,
			)
		}
	}()

	var eventIDs []string
	err := p.withRetry(ctx, func() error {
		var err error
		eventIDs, err = p.finder.EventsWithStalePending(ctx, p.now().Add(-p.config.PendingTTL))
		return err
	})
	if err != nil {
		p.incrementErrorCount()
		return 0, fmt.Errorf("failed to list stale events: %w", err)
	}

	var expired, settled int64
	for _, eventID := range eventIDs {
		out, err := p.tktSvc.ExpireStalePending(ctx, eventID)
		if err != nil {
			// One failing event must not block the others.
			p.incrementErrorCount()
			p.l.Errorw(ctx, "failed to expire stale tickets", "event_id", eventID, "error", err)
			continue
		}
		expired += out.Deleted
		settled += out.Confirmed
	}

	p.mu.Lock()
	p.totalExpired += expired
	p.totalSettled += settled
	p.mu.Unlock()

	if expired > 0 || settled > 0 {
		p.l.Infow(ctx, "expiry sweep completed",
			"events", len(eventIDs),
			"expired", expired,
			"settled", settled,
		)
	}

	return expired, nil
}

func (p *expiryProcessor) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := operation(); err != nil {
			lastErr = err
			p.l.Warnw(ctx, "operation failed, retrying",
				"attempt", attempt+1,
				"max_attempts", p.config.RetryAttempts,
				"error", err,
			)
			continue
		}

		return nil
	}

	return fmt.Errorf("operation failed after %d attempts: %w", p.config.RetryAttempts, lastErr)
}

func (p *expiryProcessor) incrementErrorCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorCount++
}

func (p *expiryProcessor) GetStatus() ProcessorStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProcessorStatus{
		IsRunning:     p.isRunning,
		StartedAt:     p.startedAt,
		LastProcessed: p.lastProcessed,
		TotalExpired:  p.totalExpired,
		TotalSettled:  p.totalSettled,
		ErrorCount:    p.errorCount,
	}
}
