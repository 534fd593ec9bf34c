package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/pkg/model"
)

// ─── NATS ────────────────────────────────────────────────────────────────────

type mockJetStream struct {
	published []*nats.Msg
	fail      bool
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.published = append(m.published, msg)
	return &nats.PubAck{Stream: "mock-stream"}, nil
}

func newTestNATS(fail bool) (*NATSPublisher, *mockJetStream) {
	js := &mockJetStream{fail: fail}
	return &NATSPublisher{js: js, subject: "evt.oracle.push.v1", source: "pusher", logger: zap.NewNop()}, js
}

func testAttempt(status model.PushStatus) *model.PushAttempt {
	return &model.PushAttempt{
		ID:        uuid.New(),
		FeedID:    "AVAX",
		Path:      "rpc",
		Signature: "5sig",
		Status:    status,
		StartedAt: time.Now().UTC(),
	}
}

func TestNATSPublishPush_Success(t *testing.T) {
	pub, js := newTestNATS(false)
	a := testAttempt(model.PushStatusSubmitted)

	require.NoError(t, pub.PublishPush(context.Background(), a))
	require.Len(t, js.published, 1)

	msg := js.published[0]
	assert.Equal(t, "evt.oracle.push.v1", msg.Subject)
	assert.Equal(t, "push.submitted", msg.Header.Get("event_type"))
	assert.Equal(t, "AVAX", msg.Header.Get("feed_id"))

	var env model.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	var payload model.PushAttempt
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, a.ID, payload.ID)
}

func TestNATSPublishPush_Failure(t *testing.T) {
	pub, _ := newTestNATS(true)
	require.Error(t, pub.PublishPush(context.Background(), testAttempt(model.PushStatusFailed)))
}

func TestNATSClose_NilConn(t *testing.T) {
	pub, _ := newTestNATS(false)
	require.NoError(t, pub.Close())
}

// ─── RabbitMQ ────────────────────────────────────────────────────────────────

type mockChannel struct {
	keys   []string
	msgs   []amqp.Publishing
	fail   bool
	closed bool
}

func (m *mockChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if m.fail {
		return errors.New("channel closed")
	}
	m.keys = append(m.keys, key)
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

func TestRabbitPublishPush(t *testing.T) {
	ch := &mockChannel{}
	pub := &RabbitPublisher{channel: ch, routingKey: "oracle.push", source: "pusher", logger: zap.NewNop()}

	require.NoError(t, pub.PublishPush(context.Background(), testAttempt(model.PushStatusSubmitted)))
	require.NoError(t, pub.PublishPush(context.Background(), testAttempt(model.PushStatusFailed)))

	require.Len(t, ch.msgs, 2)
	assert.Equal(t, []string{"oracle.push", "oracle.push"}, ch.keys)
	assert.Equal(t, "push.submitted", ch.msgs[0].Type)
	assert.Equal(t, "application/json", ch.msgs[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.msgs[0].DeliveryMode)
	assert.Zero(t, ch.msgs[0].Priority)
	assert.Equal(t, "push.failed", ch.msgs[1].Type)
	assert.EqualValues(t, 5, ch.msgs[1].Priority)

	require.NoError(t, pub.Close())
	assert.True(t, ch.closed)
}

func TestRabbitPublishPush_Failure(t *testing.T) {
	pub := &RabbitPublisher{channel: &mockChannel{fail: true}, routingKey: "oracle.push", logger: zap.NewNop()}
	require.Error(t, pub.PublishPush(context.Background(), testAttempt(model.PushStatusSubmitted)))
}

// ─── Fanout ──────────────────────────────────────────────────────────────────

func TestFanout_PublishesToAllSinks(t *testing.T) {
	good, js := newTestNATS(false)
	bad, _ := newTestNATS(true)
	ch := &mockChannel{}
	rabbit := &RabbitPublisher{channel: ch, routingKey: "oracle.push", source: "pusher", logger: zap.NewNop()}

	f := Fanout{bad, good, rabbit}
	err := f.PublishPush(context.Background(), testAttempt(model.PushStatusSubmitted))
	require.Error(t, err, "a failing sink is reported")
	assert.Len(t, js.published, 1, "later sinks still receive the event")
	assert.Len(t, ch.msgs, 1)

	require.NoError(t, Fanout{good, rabbit}.Close())
	assert.True(t, ch.closed)
}
