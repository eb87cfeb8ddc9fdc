package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) received() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func TestEventsFlowFromPublisherToForwarder(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	forwarder := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewConsumerService(pubSub, "insight-events", forwarder, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	publisher := NewPublisherService(pubSub, "insight-events")
	require.NoError(t, publisher.Publish(ctx, events.InsightQueryCompleted{
		ConversationId: "c1",
		RowCount:       4,
		CompletedAt:    at,
	}))

	require.Eventually(t, func() bool { return len(forwarder.received()) == 1 }, time.Second, 10*time.Millisecond)

	got := forwarder.received()[0]
	assert.Equal(t, events.TypeInsightQueryCompleted, got.EventType())
	assert.True(t, at.Equal(got.Timestamp()))
	assert.Equal(t, "c1", got.Payload()["conversationId"])
	assert.Equal(t, float64(4), got.Payload()["rowCount"])
}

func TestConsumerAcksWhenForwardingFails(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	forwarder := &recordingPublisher{err: errors.New("nats unavailable")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, NewConsumerService(pubSub, "t", forwarder, logger.NewNopLogger()).Consume(ctx))
	require.NoError(t, NewPublisherService(pubSub, "t").Publish(ctx, events.InsightQueryCompleted{CompletedAt: time.Now()}))

	require.Eventually(t, func() bool { return len(forwarder.received()) >= 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, forwarder.received(), 1)
}
