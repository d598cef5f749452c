package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

// PaymentUpdateRepository fans payment state changes out over Redis Pub/Sub
// to every instance holding an open payment stream.
type PaymentUpdateRepository interface {
	Publish(ctx context.Context, upd *models.PaymentUpdate) error
	Subscribe(ctx context.Context, paymentHash string) (PaymentUpdateSubscription, error)
}

type PaymentUpdateSubscription interface {
	Updates() <-chan *models.PaymentUpdate
	Close() error
}

type redisPaymentUpdateRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisPaymentUpdateRepository(cli *redis.Client, l logger.Logger) PaymentUpdateRepository {
	return &redisPaymentUpdateRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisPaymentUpdateRepository) Publish(ctx context.Context, upd *models.PaymentUpdate) error {
	data, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("failed to marshal payment update: %w", err)
	}

	if err := r.cli.Publish(ctx, paymentChannel(upd.PaymentHash), string(data)).Err(); err != nil {
		r.l.Errorf(ctx, "redisPaymentUpdateRepository.Publish: %v", err)
		return err
	}

	return nil
}

func (r *redisPaymentUpdateRepository) Subscribe(ctx context.Context, paymentHash string) (PaymentUpdateSubscription, error) {
	ps := r.cli.Subscribe(ctx, paymentChannel(paymentHash))

	// Wait for the subscription confirmation so no update published after
	// this call returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		r.l.Errorf(ctx, "redisPaymentUpdateRepository.Subscribe: %v", err)
		return nil, err
	}

	sub := &paymentUpdateSubscription{
		ps:      ps,
		updates: make(chan *models.PaymentUpdate, 8),
		done:    make(chan struct{}),
	}
	go sub.forward(ctx, r.l)

	return sub, nil
}

type paymentUpdateSubscription struct {
	ps      *redis.PubSub
	updates chan *models.PaymentUpdate
	done    chan struct{}
	once    sync.Once
}

func (s *paymentUpdateSubscription) forward(ctx context.Context, l logger.Logger) {
	defer close(s.updates)

	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var upd models.PaymentUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
				l.Warnf(ctx, "paymentUpdateSubscription.forward: %v", err)
				continue
			}

			select {
			case s.updates <- &upd:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

func (s *paymentUpdateSubscription) Updates() <-chan *models.PaymentUpdate {
	return s.updates
}

func (s *paymentUpdateSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func paymentChannel(paymentHash string) string {
	return fmt.Sprintf("payments:%s", paymentHash)
}
