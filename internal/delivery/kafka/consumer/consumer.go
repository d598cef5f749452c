package consumer

import (
	"context"
	"sync"

	"github.com/IBM/sarama"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

// Reconciler applies a settlement reported by the node bridge to stored tickets.
type Reconciler interface {
	ReconcileSettlement(ctx context.Context, st models.Settlement) (int64, error)
}

type Consumer struct {
	consGr sarama.ConsumerGroup
	rec    Reconciler
	l      logger.Logger
	wg     sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	rec Reconciler,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr: consGr,
		rec:    rec,
		l:      l,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicInvoiceSettled:
		return c.HandleInvoiceSettled(ctx, msg)
	default:
		c.l.Warnw(ctx, "unknown topic", "topic", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{kafka.TopicInvoiceSettled}
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

// ConsumeClaim leaves failed messages unmarked so they are redelivered after a rebalance.
func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if err := c.processMessage(ss.Context(), message); err != nil {
				c.l.Errorw(ss.Context(), "delivery.kafka.consumer.consumer.ConsumeClaim",
					"error", err,
					"topic", message.Topic,
					"offset", message.Offset,
				)
				continue
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
