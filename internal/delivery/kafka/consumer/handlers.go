package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

func (c *Consumer) HandleInvoiceSettled(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.InvoiceSettledEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleInvoiceSettled: %v", err)
		return err
	}

	hash, err := lightning.ParsePaymentHash(e.PaymentHash)
	if err != nil {
		// Redelivery cannot fix a bad hash, so the message is dropped.
		c.l.Warnw(ctx, "dropping settlement with invalid hash",
			"payment_hash", e.PaymentHash,
			"offset", message.Offset,
		)
		return nil
	}

	n, err := c.rec.ReconcileSettlement(ctx, models.Settlement{
		PaymentHash:    hash,
		AmountPaidSats: e.AmountPaidSats,
		SettledAt:      e.SettledAt,
		SettleIndex:    e.SettleIndex,
	})
	if err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleInvoiceSettled: %v", err)
		return err
	}

	c.l.Infow(ctx, "settlement reconciled", "payment_hash", hash, "updated", n)
	return nil
}
