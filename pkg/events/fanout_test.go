package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPublisher struct {
	calls int
	err   error
}

func (p *countingPublisher) Publish(ctx context.Context, event Event) error {
	p.calls++
	return p.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	ok := &countingPublisher{}
	broken := &countingPublisher{err: errors.New("nats down")}
	event := BaseEvent{Type: TypeInsightQueryCompleted, OccurredAt: time.Now()}

	err := Fanout{ok, nil, broken}.Publish(context.Background(), event)

	assert.EqualError(t, err, "nats down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, broken.calls)
	assert.NoError(t, Fanout{}.Publish(context.Background(), event))
}
