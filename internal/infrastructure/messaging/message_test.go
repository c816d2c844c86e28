package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faq-rag-api/pkg/logger"
)

func TestMessageRoundTripThroughStreamValues(t *testing.T) {
	ev := &TurnCompletedEvent{SessionID: "s-1", MessageID: "m-1", AnswerType: "grounded", LatencyMs: 12.5}
	msg, err := NewMessage(ev.MessageID, TypeTurnCompleted, ev.SessionID, ev)
	require.NoError(t, err)
	msg.SetMetadata("request_id", "req-1")

	values, err := msg.values()
	require.NoError(t, err)

	got, err := Decode(values)
	require.NoError(t, err)
	assert.Equal(t, TypeTurnCompleted, got.Type)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "req-1", got.GetMetadata("request_id"))

	var decoded TurnCompletedEvent
	require.NoError(t, got.UnmarshalPayload(&decoded))
	assert.Equal(t, *ev, decoded)
}

func TestDecodeRejectsMalformedEntries(t *testing.T) {
	_, err := Decode(map[string]any{"other": "x"})
	assert.Error(t, err)

	_, err = Decode(map[string]any{fieldData: "{nope"})
	assert.Error(t, err)
}

func TestUnmarshalPayloadEmpty(t *testing.T) {
	var ev FeedbackRecordedEvent
	assert.Error(t, (&Message{ID: "m-1"}).UnmarshalPayload(&ev))
}

func TestMessageMetadataOnZeroValue(t *testing.T) {
	msg := &Message{}
	assert.Equal(t, "", msg.GetMetadata("trace_id"))
	msg.SetMetadata("trace_id", "abc")
	assert.Equal(t, "abc", msg.GetMetadata("trace_id"))
}

func TestStreamDLQ(t *testing.T) {
	assert.Equal(t, "dlq:stream:chat:events", StreamChatEvents.DLQStream())
}

func TestBackoffDelay(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, cfg.Delay(0))
	assert.Equal(t, 2*time.Second, cfg.Delay(1))
	assert.Equal(t, 8*time.Second, cfg.Delay(3))
	assert.Equal(t, 10*time.Second, cfg.Delay(4))
	assert.Equal(t, 10*time.Second, cfg.Delay(20))
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{Stream: StreamChatEvents, Group: ConsumerGroupTurnMetrics})
	assert.Equal(t, 5*time.Second, c.cfg.BlockTimeout)
	assert.Equal(t, 3, c.cfg.RetryLimit)
	assert.Equal(t, DefaultBackoffConfig(), c.cfg.Backoff)
	assert.Equal(t, 5*time.Minute, c.reclaimIdle)

	c = NewConsumer(nil, ConsumerConfig{Backoff: BackoffConfig{Initial: time.Second, Max: 10 * time.Minute, Multiplier: 2}})
	assert.Equal(t, 20*time.Minute, c.reclaimIdle)
}

func TestConsumerHandleAndStopWhenIdle(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{})
	c.Handle(TypeFeedbackRecorded, func(context.Context, *Message) error { return nil })

	_, ok := c.handler(TypeFeedbackRecorded)
	assert.True(t, ok)
	_, ok = c.handler(TypeTurnCompleted)
	assert.False(t, ok)

	c.Stop()
}

func TestLogContextRestoresIdentifiers(t *testing.T) {
	msg := &Message{SessionID: "s-9"}
	msg.SetMetadata("request_id", "req-9")
	msg.SetMetadata("trace_id", "trace-9")

	ctx := logContext(context.Background(), msg)
	assert.Equal(t, "s-9", ctx.Value(logger.SessionIDKey))
	assert.Equal(t, "req-9", ctx.Value(logger.RequestIDKey))
	assert.Equal(t, "trace-9", ctx.Value(logger.TraceIDKey))
}
