package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is a Bus backed by Redis pub/sub, grounded directly on the original
// trading engine's redis.asyncio publish calls and the session manager's
// subscribe-on-first-subscriber lifecycle.
type Redis struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*redisSub
}

type redisSub struct {
	pubsub    *redis.PubSub
	listeners []chan Message
}

// NewRedis connects to a Redis instance given a redis:// URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), subs: make(map[string]*redisSub)}, nil
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[channel]
	if !ok {
		ps := r.client.Subscribe(ctx, channel)
		sub = &redisSub{pubsub: ps}
		r.subs[channel] = sub
		go r.pump(channel, ps)
	}

	ch := make(chan Message, 256)
	sub.listeners = append(sub.listeners, ch)

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		s, ok := r.subs[channel]
		if !ok {
			return
		}
		for i, c := range s.listeners {
			if c == ch {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				close(c)
				break
			}
		}
		if len(s.listeners) == 0 {
			_ = s.pubsub.Unsubscribe(context.Background(), channel)
			_ = s.pubsub.Close()
			delete(r.subs, channel)
		}
	}
	return ch, unsubscribe, nil
}

// pump drains the upstream Redis subscription and fans out to local
// listeners, mirroring the original service's single _redis_subscriber loop
// rebroadcasting to every local WebSocket subscriber of a channel.
func (r *Redis) pump(channel string, ps *redis.PubSub) {
	for msg := range ps.Channel() {
		r.mu.Lock()
		sub, ok := r.subs[channel]
		if !ok {
			r.mu.Unlock()
			return
		}
		listeners := append([]chan Message(nil), sub.listeners...)
		r.mu.Unlock()

		for _, ch := range listeners {
			select {
			case ch <- Message{Channel: channel, Payload: []byte(msg.Payload)}:
			default:
			}
		}
	}
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for channel, sub := range r.subs {
		for _, ch := range sub.listeners {
			close(ch)
		}
		_ = sub.pubsub.Close()
		delete(r.subs, channel)
	}
	return r.client.Close()
}
