package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalPublishDeliversToSubscriber(t *testing.T) {
	t.Parallel()
	bus := NewLocal(8)
	ctx := context.Background()

	ch, unsubscribe, err := bus.Subscribe(ctx, "trades:BTC-USD")
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, bus.Publish(ctx, "trades:BTC-USD", []byte("1|100|2|BUY")))

	select {
	case msg := <-ch:
		require.Equal(t, "trades:BTC-USD", msg.Channel)
		require.Equal(t, "1|100|2|BUY", string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestLocalPublishDropsOnFullBuffer(t *testing.T) {
	t.Parallel()
	bus := NewLocal(1)
	ctx := context.Background()

	_, unsubscribe, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	defer unsubscribe()

	// Fill the buffer then publish again; the second publish must not block.
	done := make(chan struct{})
	go func() {
		require.NoError(t, bus.Publish(ctx, "c", []byte("first")))
		require.NoError(t, bus.Publish(ctx, "c", []byte("second")))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber buffer")
	}
}

func TestLocalUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	bus := NewLocal(8)
	ctx := context.Background()

	ch, unsubscribe, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	unsubscribe()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}
