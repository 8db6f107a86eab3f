package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Bucket    string
	Requested int
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	payload := testPayload{Bucket: "sensor", Requested: 512}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	data := message.T()
	assert.Equal(t, payload.Bucket, data.Bucket)
	assert.Equal(t, payload.Requested, data.Requested)

	assert.NoError(t, message.Ack())
	// Double ack is an error.
	assert.Error(t, message.Ack())
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	payload := testPayload{Bucket: "comm", Requested: 256}
	require.NoError(t, queue.Publish(ctx, &payload))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(nil))

	// Redelivered after the retry delay.
	ctxWait, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	message, err = queue.Consume(ctxWait)
	require.NoError(t, err)
	require.NotNil(t, message)

	// Retry budget exhausted - message lands on the dead-letter list.
	require.NoError(t, message.Nack(nil))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, queue.DeadLetters())
	assert.Equal(t, 0, queue.Size())
}

func TestConsumeCancelled(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := queue.Consume(ctx)
	assert.Error(t, err)
}
