package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPSink publishes events to a durable topic exchange keyed by event type.
type AMQPSink struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

// NewAMQPSink dials url and declares exchange.
func NewAMQPSink(url, exchange string, logger *zap.Logger) (*AMQPSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := openChannel(conn, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("amqp publisher ready", zap.String("exchange", exchange))
	return &AMQPSink{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func openChannel(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return ch, nil
}

// Publish sends event as a persistent JSON message. A closed channel is
// reopened once per call.
func (s *AMQPSink) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel == nil || s.channel.IsClosed() {
		ch, err := openChannel(s.conn, s.exchange)
		if err != nil {
			return err
		}
		s.channel = ch
	}

	err = s.channel.PublishWithContext(ctx, s.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    event.MeasureUUID + ":" + event.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	s.logger.Debug("event published", zap.String("routing_key", event.Type), zap.String("measure_uuid", event.MeasureUUID))
	return nil
}

// Close shuts the channel and the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		_ = s.channel.Close()
	}
	return s.conn.Close()
}

// LogSink records events in the log when no broker is configured.
type LogSink struct {
	Logger *zap.Logger
}

// Publish writes event to the log at info level.
func (s LogSink) Publish(_ context.Context, event Event) error {
	if s.Logger != nil {
		s.Logger.Info("measure event", zap.String("type", event.Type), zap.String("measure_uuid", event.MeasureUUID), zap.Float64("measure_value", event.Value))
	}
	return nil
}
