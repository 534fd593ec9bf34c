package publisher

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/metrics"
	"github.com/redstone-finance/solana-connector/pkg/model"
)

// Publisher emits push outcome events.
type Publisher interface {
	PublishPush(ctx context.Context, attempt *model.PushAttempt) error
	Close() error
}

// jetStream is the part of nats.JetStreamContext used for publishing.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes push events to a JetStream subject.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	source  string
	logger  *zap.Logger
}

// NewNATS creates a publisher on nc with JetStream enabled.
func NewNATS(nc *nats.Conn, subject, source string, logger *zap.Logger) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, subject: subject, source: source, logger: logger}, nil
}

// PublishPush wraps attempt in an envelope and publishes it.
func (p *NATSPublisher) PublishPush(ctx context.Context, attempt *model.PushAttempt) error {
	env, err := model.NewPushEnvelope(p.source, attempt)
	if err != nil {
		metrics.IncEventPublish("nats", "marshal_failed")
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		metrics.IncEventPublish("nats", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{env.EventType},
			"feed_id":      []string{attempt.FeedID},
			"service":      []string{p.source},
			"content_type": []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", p.subject),
			zap.String("event_type", env.EventType),
			zap.String("feed", attempt.FeedID),
			zap.Error(err))
		metrics.IncEventPublish("nats", "error")
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", p.subject),
		zap.String("event_type", env.EventType),
		zap.String("feed", attempt.FeedID))
	metrics.IncEventPublish("nats", "ok")
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.nc != nil && p.nc.IsConnected() {
		return p.nc.Drain()
	}
	return nil
}

// Fanout publishes to every sink in order and joins their errors.
type Fanout []Publisher

func (f Fanout) PublishPush(ctx context.Context, attempt *model.PushAttempt) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishPush(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
