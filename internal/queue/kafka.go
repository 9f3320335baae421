// Package queue publishes committed moderation changes to Kafka so every
// replica can relay them to its websocket clients.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

const defaultPartitions = 3

// EnsureTopic creates topic if it does not exist. Failures are logged and
// ignored; the broker may already have the topic or auto-create it.
func EnsureTopic(ctx context.Context, brokers []string, topic string) {
	if len(brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     defaultPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", topic, "partitions", defaultPartitions)
}

// Publisher writes changes to a topic. It implements moderation.Notifier.
type Publisher struct {
	w     *kafka.Writer
	topic string
}

// NewPublisher returns an async publisher; writes never block the request path.
func NewPublisher(ctx context.Context, brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error(context.Background(), "Kafka publish failed", "error", err, "messages", len(messages))
			}
		},
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", topic, "brokers", brokers)
	return &Publisher{w: w, topic: topic}
}

// Encode builds the Kafka message for a change. Keying by item keeps changes
// to one item on one partition, in commit order.
func Encode(ch moderation.Change) (kafka.Message, error) {
	payload, err := json.Marshal(ch)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ch.Kind + ":" + ch.ItemID),
		Value: payload,
	}, nil
}

func (p *Publisher) Notify(ctx context.Context, ch moderation.Change) {
	msg, err := Encode(ch)
	if err != nil {
		logger.Error(ctx, "Encode change failed", "error", err)
		return
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Kafka write failed", "error", err, "type", ch.Type, "item_id", ch.ItemID)
	}
}

func (p *Publisher) Topic() string { return p.topic }

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}
