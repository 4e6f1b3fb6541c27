package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spotmatch/internal/pubsub"
)

type fakeAuth struct {
	allow func(principalID, channel string) bool
}

func (f fakeAuth) Authorize(principalID, channel string) bool {
	return f.allow(principalID, channel)
}

func newTestClient(h *Hub, principalID string) *Client {
	return &Client{
		hub:           h,
		principalID:   principalID,
		send:          make(chan []byte, 8),
		unsubscribers: make(map[string]func()),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestClientSubscribeRejectsUnauthorizedChannel(t *testing.T) {
	t.Parallel()
	bus := pubsub.NewLocal(8)
	defer bus.Close()

	auth := fakeAuth{allow: func(principalID, channel string) bool { return false }}
	hub := NewHub(bus, auth, discardLogger())
	client := newTestClient(hub, "alice")

	err := client.Subscribe(context.Background(), "orders:bob")
	require.ErrorIs(t, err, ErrUnauthorizedChannel)
}

func TestClientSubscribeDeliversBusMessages(t *testing.T) {
	t.Parallel()
	bus := pubsub.NewLocal(8)
	defer bus.Close()

	auth := fakeAuth{allow: func(principalID, channel string) bool { return true }}
	hub := NewHub(bus, auth, discardLogger())
	client := newTestClient(hub, "alice")

	require.NoError(t, client.Subscribe(context.Background(), "trades:BTC-USD"))
	require.NoError(t, bus.Publish(context.Background(), "trades:BTC-USD", []byte(`{"price":"100"}`)))

	select {
	case frame := <-client.send:
		var f Frame
		require.NoError(t, json.Unmarshal(frame, &f))
		require.Equal(t, "trades:BTC-USD", f.Channel)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivered frame")
	}
}

func TestClientSubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	bus := pubsub.NewLocal(8)
	defer bus.Close()

	auth := fakeAuth{allow: func(principalID, channel string) bool { return true }}
	hub := NewHub(bus, auth, discardLogger())
	client := newTestClient(hub, "alice")

	require.NoError(t, client.Subscribe(context.Background(), "trades:BTC-USD"))
	require.NoError(t, client.Subscribe(context.Background(), "trades:BTC-USD"))

	client.mu.Lock()
	count := len(client.unsubscribers)
	client.mu.Unlock()
	require.Equal(t, 1, count)
}

func TestClientUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	bus := pubsub.NewLocal(8)
	defer bus.Close()

	auth := fakeAuth{allow: func(principalID, channel string) bool { return true }}
	hub := NewHub(bus, auth, discardLogger())
	client := newTestClient(hub, "alice")

	require.NoError(t, client.Subscribe(context.Background(), "trades:BTC-USD"))
	client.Unsubscribe("trades:BTC-USD")

	require.NoError(t, bus.Publish(context.Background(), "trades:BTC-USD", []byte("noop")))

	select {
	case <-client.send:
		t.Fatal("received frame after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubAuthorizedAllowsWhenResolverNil(t *testing.T) {
	t.Parallel()
	bus := pubsub.NewLocal(8)
	defer bus.Close()

	hub := NewHub(bus, nil, discardLogger())
	require.True(t, hub.authorized("alice", "orders:bob"))
}
