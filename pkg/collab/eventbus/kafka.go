package eventbus

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
)

// KafkaPublisher publishes events to a Kafka topic.
type KafkaPublisher struct {
	writer       *kafka.Writer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers and
// topic.
func NewKafkaPublisher(cfg config.EventBusConfig, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "eventbus.kafka")

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka publisher ready",
		"brokers", strings.Join(cfg.Brokers, ","),
		"topic", cfg.Topic,
	)
	return &KafkaPublisher{
		writer:       writer,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}
}

// Publish writes the event keyed by its ID.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := fill(&evt)
	if err != nil {
		return err
	}
	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ID),
		Value: data,
	}); err != nil {
		return err
	}
	p.logger.Debug("event published", "event_id", evt.ID, "type", evt.Type)
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
