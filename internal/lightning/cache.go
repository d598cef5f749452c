package lightning

import (
	"context"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

// SettlementCache stores invoice lookups that can no longer change.
// Get returns (nil, nil) on a miss.
type SettlementCache interface {
	Get(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error)
	Set(ctx context.Context, lookup *models.InvoiceLookup) error
}

type cachedOracle struct {
	InvoiceOracle
	cache SettlementCache
	l     logger.Logger
}

// WithSettlementCache serves settled and canceled invoices from cache so
// polling clients stop hitting the node once a payment is final.
func WithSettlementCache(next InvoiceOracle, cache SettlementCache, l logger.Logger) InvoiceOracle {
	return &cachedOracle{
		InvoiceOracle: next,
		cache:         cache,
		l:             l,
	}
}

func (c *cachedOracle) LookupInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error) {
	hit, err := c.cache.Get(ctx, paymentHash)
	if err != nil {
		c.l.Warnf(ctx, "lightning.cachedOracle.LookupInvoiceStatus: cache get: %v", err)
	} else if hit != nil {
		return hit, nil
	}

	lookup, err := c.InvoiceOracle.LookupInvoiceStatus(ctx, paymentHash)
	if err != nil {
		return nil, err
	}

	if lookup.State.IsTerminal() {
		if err := c.cache.Set(ctx, lookup); err != nil {
			c.l.Warnf(ctx, "lightning.cachedOracle.LookupInvoiceStatus: cache set: %v", err)
		}
	}

	return lookup, nil
}
