// Package kafka publishes billing lifecycle events for downstream consumers
// (finance reporting, CRM sync). Publishing is best-effort: a broker outage
// must never fail or delay payment processing.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"ccak/internal/platform/config"
)

// Publisher emits JSON events keyed by invoice number so all events for one
// invoice land on the same partition in order.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the configured brokers. Returns nil if no brokers
// are configured (Kafka optional); callers must tolerate a nil publisher.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Publish produces an event asynchronously. Delivery failures are logged, not
// returned; the caller has already committed its state change.
func (p *Publisher) Publish(ctx context.Context, key string, event any) {
	if p == nil || p.client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal billing event", "error", err, "key", key)
		return
	}

	record := &kgo.Record{Key: []byte(key), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("billing event delivery failed",
				"error", err,
				"topic", p.topic,
				"key", key,
			)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Flush(context.Background())
	p.client.Close()
}
