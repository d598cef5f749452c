package kafka

import (
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	Version      string
	RetryMax     int
	RequiredAcks int
}

// NewProducer hashes messages by key, so all lifecycle messages of one event
// land on the same partition and keep their order.
func NewProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	saramaCfg, err := newSaramaConfig(cfg.ClientID, cfg.Version)
	if err != nil {
		return nil, err
	}
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Retry.Backoff = 250 * time.Millisecond
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	saramaCfg.Producer.Return.Successes = true

	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Printf("Kafka producer connected to brokers: %v (version %s)\n", cfg.Brokers, saramaCfg.Version)

	return prod, nil
}
