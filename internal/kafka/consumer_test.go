package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsumer_ProcessRetriesUntilSuccess(t *testing.T) {
	c := &Consumer{log: zap.NewNop(), Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls <= 2 {
			return errors.New("db down")
		}
		return nil
	}

	require.NoError(t, c.process(context.Background(), 0, kafka.Message{Offset: 7}, h))
	assert.Equal(t, 3, calls)
}

func TestConsumer_ProcessStopsOnShutdown(t *testing.T) {
	c := &Consumer{log: zap.NewNop(), Backoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := c.process(ctx, 0, kafka.Message{}, func(context.Context, kafka.Message) error {
		calls++
		return errors.New("still down")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, calls, 2)
}
