package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/metrics"
	"github.com/redstone-finance/solana-connector/pkg/model"
)

// amqpChannel is the part of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes push events to a RabbitMQ routing key on the default exchange.
type RabbitPublisher struct {
	conn       *amqp.Connection
	channel    amqpChannel
	routingKey string
	source     string
	logger     *zap.Logger
}

// NewRabbit dials url and declares a durable queue named routingKey.
func NewRabbit(url, routingKey, source string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", routingKey, err)
	}

	return &RabbitPublisher{
		conn:       conn,
		channel:    channel,
		routingKey: routingKey,
		source:     source,
		logger:     logger,
	}, nil
}

func (p *RabbitPublisher) PublishPush(ctx context.Context, attempt *model.PushAttempt) error {
	env, err := model.NewPushEnvelope(p.source, attempt)
	if err != nil {
		metrics.IncEventPublish("rabbitmq", "marshal_failed")
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		metrics.IncEventPublish("rabbitmq", "marshal_failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID.String(),
		Type:         env.EventType,
		Timestamp:    env.Timestamp,
		Body:         body,
	}
	if !attempt.Succeeded() {
		pub.Priority = 5
	}

	err = p.channel.PublishWithContext(ctx,
		"",           // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		pub,
	)
	if err != nil {
		p.logger.Error("Failed to publish push event", zap.String("feed", attempt.FeedID), zap.Error(err))
		metrics.IncEventPublish("rabbitmq", "error")
		return err
	}
	metrics.IncEventPublish("rabbitmq", "ok")
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
