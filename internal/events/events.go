package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/domain"
)

type Publisher interface {
	PublishOrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCompleted(_ context.Context, _ domain.OrderCompletedEvent) error {
	return nil
}

// messageWriter abstracts kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// publishTimeout bounds how long a checkout waits on the brokers.
const publishTimeout = 2 * time.Second

// KafkaPublisher writes order events keyed by order id.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher takes a comma-separated broker list.
func NewKafkaPublisher(bootstrap string, topic string) *KafkaPublisher {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return newKafkaPublisherWith(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: publishTimeout,
	})
}

func newKafkaPublisherWith(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: publishTimeout}
}

func (k *KafkaPublisher) PublishOrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error {
	b, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.OrderID), Value: b})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
