// Package producer emits usage events to Kafka for the analytics worker.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	agentdomain "netra-apex/backend/internal/agent/domain"
)

// UsageProducer writes agent events to the usage topic. The analytics worker
// consumes them into ClickHouse.
type UsageProducer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewUsageProducer creates a Kafka producer for the given topic. Returns nil
// when brokers or topic are unset; a nil producer ignores all events.
func NewUsageProducer(brokers []string, topic string, log *zap.Logger) *UsageProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &UsageProducer{writer: writer, log: log}
}

// RecordAgentEvent serializes the event as JSON and writes it to the topic.
// Uses the request context with a short timeout so slow Kafka does not block callers indefinitely.
func (p *UsageProducer) RecordAgentEvent(ctx context.Context, event agentdomain.AgentEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	// Keyed by org so per-org ordering survives partitioning.
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.OrgID),
		Value: payload,
	})
	if err != nil {
		p.log.Warn("analytics: kafka write failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *UsageProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
