// Package publish sends accepted-project events to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/model"
)

// DefaultWriteTimeout bounds one publish.
const DefaultWriteTimeout = 10 * time.Second

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes ProjectEvents as JSON, keyed by project id so every
// event for one project lands on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, eris.New("publish: no kafka brokers configured")
	}
	if topic == "" {
		return nil, eris.New("publish: kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	zap.L().Info("publish: kafka publisher initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return newKafkaPublisher(w, topic), nil
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, timeout: DefaultWriteTimeout}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, ev model.ProjectEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "publish: marshal event")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.Project.ID),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(ev.Outcome)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return eris.Wrapf(err, "publish: write to %s", p.topic)
	}
	zap.L().Debug("publish: event written",
		zap.String("project_id", ev.Project.ID),
		zap.String("outcome", string(ev.Outcome)),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return eris.Wrap(p.writer.Close(), "publish: close writer")
}
