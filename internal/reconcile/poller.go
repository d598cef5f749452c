// Package reconcile drives payment reconciliation from the outside: polling
// loops a client runs while a customer pays, and the watcher that turns node
// settlement notifications into confirmed tickets.
package reconcile

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-lightning/pkg/errors"
)

// CheckFunc is one poll attempt. Returning done stops the loop with a nil
// error; returning an error stops it with that error.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Ticker is the tick source of a poll loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Poll runs check immediately and then on every tick until check reports
// done, check fails, or ctx is cancelled. A result produced after ctx was
// cancelled is discarded and ctx.Err() returned instead.
func Poll(ctx context.Context, interval time.Duration, newTicker TickerFactory, check CheckFunc) error {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}

	run := func() (bool, error) {
		done, err := check(ctx)
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		return done, err
	}

	if done, err := run(); done || err != nil {
		return err
	}

	t := newTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			if done, err := run(); done || err != nil {
				return err
			}
		}
	}
}

// permanent reports whether retrying a status check can never succeed.
// Everything else (node hiccups, network errors, 5xx) is retried on the
// next tick.
func permanent(err error) bool {
	if errors.Is(err, service.ErrInvoiceNotFound) ||
		errors.Is(err, service.ErrInvalidPaymentHash) ||
		errors.Is(err, service.ErrEventNotFound) {
		return true
	}

	var he *pkgErrors.HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= http.StatusBadRequest && he.StatusCode < http.StatusInternalServerError
	}
	return false
}
