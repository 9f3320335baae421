// Package worker runs background consumers.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/segmentio/kafka-go"

	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

// Broadcaster delivers an encoded change to local subscribers.
type Broadcaster interface {
	Send(ctx context.Context, msg []byte)
}

// RelayConfig configures the change relay.
type RelayConfig struct {
	Brokers []string
	Topic   string
	// GroupID must be unique per replica so every replica sees every change.
	GroupID string
}

// DefaultGroupID derives a per-replica consumer group from the hostname.
func DefaultGroupID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "slidont-relay-" + host
}

// RunRelay consumes the change topic and forwards each change to out until
// ctx is cancelled.
func RunRelay(ctx context.Context, cfg RelayConfig, out Broadcaster) {
	if len(cfg.Brokers) == 0 {
		logger.Info(ctx, "Relay disabled (no Kafka brokers)")
		return
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	defer reader.Close()

	logger.Info(ctx, "Kafka relay started", "topic", cfg.Topic, "group_id", cfg.GroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Relay fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, msg.Value, out); err != nil {
			// Commit anyway so a poison message cannot block the partition.
			logger.Error(ctx, "Relay handle failed", "error", err, "payload", string(msg.Value))
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "Relay commit failed", "error", err)
		}
	}
}

func handleMessage(ctx context.Context, payload []byte, out Broadcaster) error {
	var ch moderation.Change
	if err := json.Unmarshal(payload, &ch); err != nil {
		return err
	}
	if ch.Type == "" || ch.ItemID == "" {
		return fmt.Errorf("malformed change: missing type or item id")
	}
	out.Send(ctx, payload)
	return nil
}
