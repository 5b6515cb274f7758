package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	ev := ClockEvent{
		EmployeeID: "TSI00123",
		DeviceID:   "dev-1",
		Kind:       "in",
		At:         time.Date(2026, 8, 24, 8, 58, 0, 0, time.UTC),
	}
	require.NoError(t, q.Publish(ctx, ev))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-out:
		assert.Equal(t, ev.EmployeeID, got.EmployeeID)
		assert.Equal(t, ev.Kind, got.Kind)
		assert.True(t, got.At.Equal(ev.At))
	case <-time.After(time.Second):
		t.Fatal("no event consumed")
	}
}

func TestInMemoryPublishHonorsCancellation(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, ClockEvent{EmployeeID: "a", Kind: "in"}))

	// Queue full; a cancelled context must unblock the publisher.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Publish(cancelled, ClockEvent{EmployeeID: "b", Kind: "in"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	out, err := q.Consume(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-out:
		assert.False(t, open, "channel should close after cancel")
	case <-time.After(time.Second):
		t.Fatal("consume goroutine did not stop")
	}
}
