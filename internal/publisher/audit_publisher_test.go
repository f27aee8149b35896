package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func deliveredMessage(err error) *kafka.Message {
	topic := "chronicle.audit"
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Error: err},
	}
}

func TestAwaitDelivery_Success(t *testing.T) {
	deliveryChan := make(chan kafka.Event, 1)
	deliveryChan <- deliveredMessage(nil)

	if err := awaitDelivery(context.Background(), deliveryChan, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAwaitDelivery_ReportsDeliveryFailure(t *testing.T) {
	deliveryChan := make(chan kafka.Event, 1)
	deliveryChan <- deliveredMessage(kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false))

	err := awaitDelivery(context.Background(), deliveryChan, time.Second)
	if err == nil || !strings.Contains(err.Error(), "delivery failed") {
		t.Fatalf("expected a delivery failure, got %v", err)
	}
}

func TestAwaitDelivery_LateReportAfterTimeoutDoesNotPanic(t *testing.T) {
	deliveryChan := make(chan kafka.Event, 1)

	err := awaitDelivery(context.Background(), deliveryChan, 10*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "delivery timeout") {
		t.Fatalf("expected a timeout, got %v", err)
	}

	// The producer's poller sends the report whenever it arrives, long after
	// the caller gave up. The abandoned channel must absorb it: a send that
	// panics or blocks here would take the whole process down.
	done := make(chan struct{})
	go func() {
		defer close(done)
		deliveryChan <- deliveredMessage(nil)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("late delivery report blocked on the abandoned channel")
	}
}

func TestAwaitDelivery_Cancellation(t *testing.T) {
	deliveryChan := make(chan kafka.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := awaitDelivery(ctx, deliveryChan, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
