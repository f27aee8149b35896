// Package publisher streams committed audit entries to Kafka for downstream
// consumers. The audit log row is the source of truth; publishing is
// best-effort and gated on configuration.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/domain"
)

type AuditPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewAuditPublisher creates a Kafka producer for audit events.
func NewAuditPublisher(bootstrapServers, topic string) (*AuditPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": bootstrapServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("topic", topic).Info("audit kafka producer created")

	return &AuditPublisher{producer: p, topic: topic}, nil
}

// Publish sends one committed audit entry, keyed by record ID so all events
// for a record land on one partition in order.
func (p *AuditPublisher) Publish(ctx context.Context, entry domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	// The channel stays open and buffered: the producer's poller delivers a
	// report for every produced message, possibly long after a timeout here,
	// and must never block or hit a closed channel.
	deliveryChan := make(chan kafka.Event, 1)

	if err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(entry.RecordID.String()),
		Value:          payload,
	}, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return awaitDelivery(ctx, deliveryChan, deliveryTimeout)
}

const deliveryTimeout = 10 * time.Second

// awaitDelivery waits for one delivery report. On timeout or cancellation the
// channel is abandoned, not closed; the eventual late report lands in its
// buffer and is garbage-collected with it.
func awaitDelivery(ctx context.Context, deliveryChan chan kafka.Event, timeout time.Duration) error {
	select {
	case e := <-deliveryChan:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type: %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", msg.TopicPartition.Error)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("delivery timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and shuts down the producer.
func (p *AuditPublisher) Close() {
	log.Info("closing audit kafka producer")
	p.producer.Flush(15 * 1000)
	p.producer.Close()
}
