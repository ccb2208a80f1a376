package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"portfolio-alerts/internal/config"
)

// KafkaNotifier publishes trigger events to a Kafka topic so downstream
// delivery services can fan them out.
type KafkaNotifier struct {
	writer  *kafka.Writer
	enabled bool
}

// NewKafkaNotifier creates a new KafkaNotifier.
func NewKafkaNotifier(cfg config.KafkaConfig) *KafkaNotifier {
	enabled := cfg.Enabled && len(cfg.Brokers) > 0 && cfg.Topic != ""
	if !enabled {
		return &KafkaNotifier{enabled: false}
	}

	return &KafkaNotifier{
		enabled: true,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{}, // Partition by key
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
	}
}

// Name returns the name of the notifier.
func (k *KafkaNotifier) Name() string {
	return "kafka"
}

// IsEnabled returns whether the notifier is enabled.
func (k *KafkaNotifier) IsEnabled() bool {
	return k.enabled
}

// Send publishes the notification as a JSON message, keyed by symbol so all
// events for one asset land in the same partition.
func (k *KafkaNotifier) Send(ctx context.Context, n Notification) error {
	if !k.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling kafka payload: %w", err)
	}

	var key []byte
	if symbol, ok := n.Data["symbol"].(string); ok {
		key = []byte(symbol)
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("publishing trigger event: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
