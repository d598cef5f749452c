package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	kafka "github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/util"
)

type Producer interface {
	PublishTicketsReserved(ctx context.Context, event kafka.TicketsReservedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event kafka.PaymentConfirmedEvent) error
	PublishTicketClaimed(ctx context.Context, event kafka.TicketClaimedEvent) error
	PublishTicketCheckedIn(ctx context.Context, event kafka.TicketCheckedInEvent) error
	PublishTicketTransferred(ctx context.Context, event kafka.TicketTransferredEvent) error
	PublishTicketsExpired(ctx context.Context, event kafka.TicketsExpiredEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishTicketsReserved(ctx context.Context, event kafka.TicketsReservedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, "PublishTicketsReserved", kafka.TopicTicketsReserved, event.EventID, event)
}

func (p *implProducer) PublishPaymentConfirmed(ctx context.Context, event kafka.PaymentConfirmedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, "PublishPaymentConfirmed", kafka.TopicPaymentConfirmed, event.EventID, event)
}

func (p *implProducer) PublishTicketClaimed(ctx context.Context, event kafka.TicketClaimedEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, "PublishTicketClaimed", kafka.TopicTicketClaimed, event.EventID, event)
}

func (p *implProducer) PublishTicketCheckedIn(ctx context.Context, event kafka.TicketCheckedInEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, "PublishTicketCheckedIn", kafka.TopicTicketCheckedIn, event.EventID, event)
}

func (p *implProducer) PublishTicketTransferred(ctx context.Context, event kafka.TicketTransferredEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, "PublishTicketTransferred", kafka.TopicTicketTransferred, event.EventID, event)
}

func (p *implProducer) PublishTicketsExpired(ctx context.Context, event kafka.TicketsExpiredEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, "PublishTicketsExpired", kafka.TopicTicketsExpired, event.EventID, event)
}

// send partitions by event ID so every message about one event stays ordered.
func (p *implProducer) send(ctx context.Context, method, topic, key string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.%s: %v", method, err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderTimestamp),
				Value: []byte(util.TimeToISO8601Str(time.Now())),
			},
			{
				Key:   []byte(kafka.HeaderEventType),
				Value: []byte(topic),
			},
		},
	}

	if _, _, err := p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.%s: %v", method, err)
		return err
	}

	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}

type noopProducer struct{}

// NewNoopProducer is used when Kafka is disabled.
func NewNoopProducer() Producer {
	return noopProducer{}
}

func (noopProducer) PublishTicketsReserved(context.Context, kafka.TicketsReservedEvent) error {
	return nil
}

func (noopProducer) PublishPaymentConfirmed(context.Context, kafka.PaymentConfirmedEvent) error {
	return nil
}

func (noopProducer) PublishTicketClaimed(context.Context, kafka.TicketClaimedEvent) error {
	return nil
}

func (noopProducer) PublishTicketCheckedIn(context.Context, kafka.TicketCheckedInEvent) error {
	return nil
}

func (noopProducer) PublishTicketTransferred(context.Context, kafka.TicketTransferredEvent) error {
	return nil
}

func (noopProducer) PublishTicketsExpired(context.Context, kafka.TicketsExpiredEvent) error {
	return nil
}

func (noopProducer) Close() error { return nil }
