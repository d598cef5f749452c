package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

// SettlementCacheRepository keeps final invoice lookups so repeated polls do
// not reach the Lightning node.
type SettlementCacheRepository interface {
	Get(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error)
	Set(ctx context.Context, lookup *models.InvoiceLookup) error
}

type redisSettlementCache struct {
	cli redis.Cmdable
	ttl time.Duration
	l   logger.Logger
}

func NewRedisSettlementCache(cli redis.Cmdable, ttl time.Duration, l logger.Logger) SettlementCacheRepository {
	return &redisSettlementCache{
		cli: cli,
		ttl: ttl,
		l:   l,
	}
}

func (r *redisSettlementCache) Get(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error) {
	data, err := r.cli.Get(ctx, r.settlementKey(paymentHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.l.Errorf(ctx, "redisSettlementCache.Get: %v", err)
		return nil, err
	}

	var lookup models.InvoiceLookup
	if err := json.Unmarshal(data, &lookup); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice lookup: %w", err)
	}

	return &lookup, nil
}

func (r *redisSettlementCache) Set(ctx context.Context, lookup *models.InvoiceLookup) error {
	data, err := json.Marshal(lookup)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice lookup: %w", err)
	}

	if err := r.cli.Set(ctx, r.settlementKey(lookup.PaymentHash), string(data), r.ttl).Err(); err != nil {
		r.l.Errorf(ctx, "redisSettlementCache.Set: %v", err)
		return err
	}

	return nil
}

func (r *redisSettlementCache) settlementKey(paymentHash string) string {
	return fmt.Sprintf("lightning:invoice:%s", paymentHash)
}
