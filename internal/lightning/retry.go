package lightning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

type retryOracle struct {
	InvoiceOracle
	attempts  int
	baseDelay time.Duration
	l         logger.Logger
}

// WithRetry retries invoice minting while the node is unavailable, doubling
// the delay after each failed attempt. Other calls pass straight through.
func WithRetry(next InvoiceOracle, attempts int, baseDelay time.Duration, l logger.Logger) InvoiceOracle {
	if attempts < 1 {
		attempts = 1
	}

	return &retryOracle{
		InvoiceOracle: next,
		attempts:      attempts,
		baseDelay:     baseDelay,
		l:             l,
	}
}

func (r *retryOracle) CreateInvoice(ctx context.Context, amountSats int64, memo string, expiry time.Duration) (*models.Invoice, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		inv, err := r.InvoiceOracle.CreateInvoice(ctx, amountSats, memo, expiry)
		if err == nil {
			return inv, nil
		}

		if !errors.Is(err, ErrOracleUnavailable) {
			return nil, err
		}

		lastErr = err
		r.l.Warnw(ctx, "Invoice creation failed, retrying",
			"attempt", attempt+1,
			"max_attempts", r.attempts,
			"error", err,
		)
	}

	return nil, fmt.Errorf("invoice creation failed after %d attempts: %w", r.attempts, lastErr)
}
