package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Issue lifecycle events.
const (
	EventIssueCreated = "issue.created"
	EventIssueUpdated = "issue.updated"
	EventIssueDeleted = "issue.deleted"
)

// IssueEventProducer publishes issue events; tests substitute a recorder.
type IssueEventProducer interface {
	ProduceIssueEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer writes issue events to a Kafka topic (best-effort, never blocks the API).
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *slog.Logger
}

// NewProducer creates a producer. With no brokers or no topic every method is a no-op.
func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	return &Producer{
		topic: topic,
		log:   log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events actually leave the process.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// ProduceIssueEvent writes {"event": event, ...payload}. Messages are keyed by
// issue_id so events of one issue stay ordered within a partition.
func (p *Producer) ProduceIssueEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	body, err := encodeEvent(event, payload)
	if err != nil {
		p.log.ErrorContext(ctx, "kafka: marshal issue event", "event", event, "error", err)
		return
	}
	msg := kafka.Message{Value: body}
	if id, ok := payload["issue_id"].(string); ok {
		msg.Key = []byte(id)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.ErrorContext(ctx, "kafka: write issue event", "event", event, "topic", p.topic, "error", err)
	}
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeEvent(event string, payload map[string]interface{}) ([]byte, error) {
	msg := map[string]interface{}{"event": event}
	for k, v := range payload {
		msg[k] = v
	}
	return json.Marshal(msg)
}
